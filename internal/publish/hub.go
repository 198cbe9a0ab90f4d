package publish

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/BegaDeveloper/medqa/internal/dataset"
	"github.com/BegaDeveloper/medqa/internal/jsonl"
)

const (
	DefaultEndpoint   = "https://huggingface.co"
	defaultHubTimeout = 5 * time.Minute
	defaultRevision   = "main"
)

// HubOptions configures the HTTP dataset hub client.
type HubOptions struct {
	Endpoint  string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// Hub publishes splits to a Hugging Face compatible dataset hub. Each split is
// committed as data/<split>.jsonl, replacing the previous file.
type Hub struct {
	client   *resty.Client
	transfer *resty.Client
	endpoint string
}

var _ Publisher = (*Hub)(nil)
var _ Previewer = (*Hub)(nil)

func NewHub(options HubOptions) (*Hub, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(options.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid hub endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("hub endpoint scheme must be http or https, got: %q", parsed.Scheme)
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = defaultHubTimeout
	}
	userAgent := options.UserAgent
	if userAgent == "" {
		userAgent = "medqa"
	}

	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)
	if token := strings.TrimSpace(options.Token); token != "" {
		client.SetAuthToken(token)
	}
	// Large file storage hands out presigned URLs, which must not see the hub token.
	transfer := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)
	return &Hub{client: client, transfer: transfer, endpoint: endpoint}, nil
}

// Endpoint is the base URL the client talks to.
func (hub *Hub) Endpoint() string {
	return hub.endpoint
}

type createRepoRequest struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Private      bool   `json:"private"`
}

// EnsureRepo creates the dataset repository. A repository that already
// exists counts as success and keeps its current visibility.
func (hub *Hub) EnsureRepo(ctx context.Context, target Target) error {
	response, err := hub.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(createRepoRequest{
			Type:         "dataset",
			Name:         target.Name,
			Organization: target.Namespace,
			Private:      target.Private,
		}).
		Post("/api/repos/create")
	if err != nil {
		return fmt.Errorf("create repository %s: %w", target.ID(), err)
	}
	if response.StatusCode() == http.StatusConflict || response.IsSuccess() {
		return nil
	}
	return &StatusError{
		Operation:  "create repository " + target.ID(),
		StatusCode: response.StatusCode(),
		Body:       string(response.Body()),
	}
}

type commitLine struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type commitHeader struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

type commitFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type commitLFSFile struct {
	Path string `json:"path"`
	Algo string `json:"algo"`
	OID  string `json:"oid"`
	Size int    `json:"size"`
}

// PublishSplit uploads one split as a single commit. Files the hub wants in
// large file storage are uploaded there first and committed by pointer.
func (hub *Hub) PublishSplit(ctx context.Context, target Target, split string, records []dataset.Record) error {
	payload := bytes.Buffer{}
	if err := jsonl.Encode(&payload, records); err != nil {
		return fmt.Errorf("encode split %s: %w", split, err)
	}
	path := splitPath(split)

	mode, err := hub.uploadMode(ctx, target, path, payload.Bytes())
	if err != nil {
		return err
	}
	file := commitLine{Key: "file", Value: commitFile{
		Path:     path,
		Content:  base64.StdEncoding.EncodeToString(payload.Bytes()),
		Encoding: "base64",
	}}
	if mode == uploadModeLFS {
		sum := sha256.Sum256(payload.Bytes())
		oid := hex.EncodeToString(sum[:])
		if err := hub.uploadLFS(ctx, target, oid, payload.Bytes()); err != nil {
			return err
		}
		file = commitLine{Key: "lfsFile", Value: commitLFSFile{Path: path, Algo: "sha256", OID: oid, Size: payload.Len()}}
	}

	body := bytes.Buffer{}
	encoder := json.NewEncoder(&body)
	lines := []commitLine{
		{Key: "header", Value: commitHeader{
			Summary:     fmt.Sprintf("Upload %s split (%d records)", split, len(records)),
			Description: "commit " + uuid.NewString(),
		}},
		file,
	}
	for _, line := range lines {
		if err := encoder.Encode(line); err != nil {
			return fmt.Errorf("encode commit: %w", err)
		}
	}

	operation := fmt.Sprintf("publish split %s to %s", split, target.ID())
	response, err := hub.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-ndjson").
		SetBody(body.Bytes()).
		Post(hub.repoAPIPath(target, "commit"))
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if !response.IsSuccess() {
		return &StatusError{Operation: operation, StatusCode: response.StatusCode(), Body: string(response.Body())}
	}
	return nil
}

func (hub *Hub) repoAPIPath(target Target, action string) string {
	return fmt.Sprintf("/api/datasets/%s/%s/%s/%s",
		url.PathEscape(target.Namespace), url.PathEscape(target.Name), action, defaultRevision)
}

const (
	uploadModeRegular = "regular"
	uploadModeLFS     = "lfs"
	preuploadSample   = 512
)

type preuploadFile struct {
	Path   string `json:"path"`
	Size   int    `json:"size"`
	Sample string `json:"sample"`
}

type preuploadRequest struct {
	Files []preuploadFile `json:"files"`
}

type preuploadResponse struct {
	Files []struct {
		Path       string `json:"path"`
		UploadMode string `json:"uploadMode"`
	} `json:"files"`
}

// uploadMode asks the hub whether path goes in the commit body or in large
// file storage. A hub that does not answer for path gets a regular upload.
func (hub *Hub) uploadMode(ctx context.Context, target Target, path string, content []byte) (string, error) {
	sample := content
	if len(sample) > preuploadSample {
		sample = sample[:preuploadSample]
	}
	operation := fmt.Sprintf("preupload %s to %s", path, target.ID())
	result := preuploadResponse{}
	response, err := hub.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(preuploadRequest{Files: []preuploadFile{{
			Path:   path,
			Size:   len(content),
			Sample: base64.StdEncoding.EncodeToString(sample),
		}}}).
		SetResult(&result).
		Post(hub.repoAPIPath(target, "preupload"))
	if err != nil {
		return "", fmt.Errorf("%s: %w", operation, err)
	}
	if !response.IsSuccess() {
		return "", &StatusError{Operation: operation, StatusCode: response.StatusCode(), Body: string(response.Body())}
	}
	for _, file := range result.Files {
		if file.Path == path && file.UploadMode == uploadModeLFS {
			return uploadModeLFS, nil
		}
	}
	return uploadModeRegular, nil
}

const lfsMediaType = "application/vnd.git-lfs+json"

type lfsObject struct {
	OID  string `json:"oid"`
	Size int    `json:"size"`
}

type lfsBatchRequest struct {
	Operation string      `json:"operation"`
	Transfers []string    `json:"transfers"`
	Objects   []lfsObject `json:"objects"`
	HashAlgo  string      `json:"hash_algo"`
}

type lfsAction struct {
	Href   string            `json:"href"`
	Header map[string]string `json:"header"`
}

type lfsBatchResponse struct {
	Objects []struct {
		OID     string               `json:"oid"`
		Actions map[string]lfsAction `json:"actions"`
		Error   *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"objects"`
}

// uploadLFS stores content in the repository's large file storage. An object
// the server already holds comes back without an upload action and is skipped.
func (hub *Hub) uploadLFS(ctx context.Context, target Target, oid string, content []byte) error {
	operation := fmt.Sprintf("upload large file %s to %s", oid, target.ID())
	result := lfsBatchResponse{}
	response, err := hub.client.R().
		SetContext(ctx).
		SetHeader("Accept", lfsMediaType).
		SetHeader("Content-Type", lfsMediaType).
		SetBody(lfsBatchRequest{
			Operation: "upload",
			Transfers: []string{"basic"},
			Objects:   []lfsObject{{OID: oid, Size: len(content)}},
			HashAlgo:  "sha256",
		}).
		SetResult(&result).
		Post(fmt.Sprintf("/datasets/%s/%s.git/info/lfs/objects/batch",
			url.PathEscape(target.Namespace), url.PathEscape(target.Name)))
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if !response.IsSuccess() {
		return &StatusError{Operation: operation, StatusCode: response.StatusCode(), Body: string(response.Body())}
	}
	if len(result.Objects) == 0 {
		return fmt.Errorf("%s: batch response has no objects", operation)
	}
	object := result.Objects[0]
	if object.Error != nil {
		return fmt.Errorf("%s: lfs error %d: %s", operation, object.Error.Code, object.Error.Message)
	}

	upload, ok := object.Actions["upload"]
	if !ok {
		return nil
	}
	if _, multipart := upload.Header["chunk_size"]; multipart {
		return fmt.Errorf("%s: multipart upload is not supported", operation)
	}
	response, err = hub.transfer.R().
		SetContext(ctx).
		SetHeaders(upload.Header).
		SetBody(content).
		Put(upload.Href)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if !response.IsSuccess() {
		return &StatusError{Operation: operation, StatusCode: response.StatusCode(), Body: string(response.Body())}
	}

	verify, ok := object.Actions["verify"]
	if !ok {
		return nil
	}
	response, err = hub.client.R().
		SetContext(ctx).
		SetHeaders(verify.Header).
		SetHeader("Accept", lfsMediaType).
		SetHeader("Content-Type", lfsMediaType).
		SetBody(lfsObject{OID: oid, Size: len(content)}).
		Post(verify.Href)
	if err != nil {
		return fmt.Errorf("verify large file %s: %w", oid, err)
	}
	if !response.IsSuccess() {
		return &StatusError{Operation: "verify large file " + oid, StatusCode: response.StatusCode(), Body: string(response.Body())}
	}
	return nil
}

// FetchFirst downloads a published split and returns its first record.
func (hub *Hub) FetchFirst(ctx context.Context, target Target, split string) (dataset.Record, bool, error) {
	operation := fmt.Sprintf("fetch split %s from %s", split, target.ID())
	response, err := hub.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/datasets/%s/%s/resolve/%s/%s",
			url.PathEscape(target.Namespace), url.PathEscape(target.Name), defaultRevision, splitPath(split)))
	if err != nil {
		return dataset.Record{}, false, fmt.Errorf("%s: %w", operation, err)
	}
	if response.StatusCode() == http.StatusNotFound {
		return dataset.Record{}, false, nil
	}
	if !response.IsSuccess() {
		return dataset.Record{}, false, &StatusError{Operation: operation, StatusCode: response.StatusCode(), Body: string(response.Body())}
	}
	return firstRecord(response.Body())
}

func firstRecord(content []byte) (dataset.Record, bool, error) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), len(content)+1)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		record := dataset.Record{}
		if err := json.Unmarshal(line, &record); err != nil {
			return dataset.Record{}, false, fmt.Errorf("decode first record: %w", err)
		}
		return record, true, nil
	}
	if err := scanner.Err(); err != nil {
		return dataset.Record{}, false, fmt.Errorf("scan published split: %w", err)
	}
	return dataset.Record{}, false, nil
}

func (hub *Hub) Close() error {
	return nil
}
