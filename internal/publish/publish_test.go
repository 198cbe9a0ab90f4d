package publish

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BegaDeveloper/medqa/internal/dataset"
	"github.com/BegaDeveloper/medqa/internal/jsonl"
)

func sampleRecords(questions ...string) []dataset.Record {
	records := make([]dataset.Record, 0, len(questions))
	for index, question := range questions {
		record := dataset.FromFields(index, nil)
		sourceIndex := index * 10
		record.SourceIndex = &sourceIndex
		record.Question = dataset.String(question)
		record.Options = json.RawMessage(`{"A":"x","B":"y"}`)
		record.Answer = dataset.String("A")
		record.Extra.Set("zz_extra", json.RawMessage(`1`))
		records = append(records, record)
	}
	return records
}

func TestTargetValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Target{Namespace: "mkieffer", Name: "MedQA-USMLE"}.Validate())
	assert.Error(t, Target{Namespace: "", Name: "x"}.Validate())
	assert.Error(t, Target{Namespace: "a/b", Name: "x"}.Validate())
	assert.Equal(t, "https://huggingface.co/datasets/a/b", RepoURL("https://huggingface.co/", Target{Namespace: "a", Name: "b"}))
}

type hubRecorder struct {
	mu       sync.Mutex
	requests map[string][]byte
	headers  map[string]http.Header
}

func newHubServer(t *testing.T, createStatus int) (*httptest.Server, *hubRecorder) {
	t.Helper()
	recorder := &hubRecorder{requests: map[string][]byte{}, headers: map[string]http.Header{}}
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		recorder.mu.Lock()
		recorder.requests[request.Method+" "+request.URL.Path] = body
		recorder.headers[request.Method+" "+request.URL.Path] = request.Header.Clone()
		recorder.mu.Unlock()

		switch {
		case request.Method == http.MethodPost && request.URL.Path == "/api/repos/create":
			writer.WriteHeader(createStatus)
			_, _ = writer.Write([]byte(`{"error":"conflict or ok"}`))
		case request.Method == http.MethodPost && strings.HasPrefix(request.URL.Path, "/api/datasets/"):
			writer.WriteHeader(http.StatusOK)
			_, _ = writer.Write([]byte(`{"commitOid":"abc"}`))
		case request.Method == http.MethodGet && request.URL.Path == "/datasets/owner/repo/resolve/main/data/dev.jsonl":
			_, _ = writer.Write([]byte("\n{\"index\":0,\"source_index\":3,\"question\":\"first\"}\n{\"index\":1}\n"))
		default:
			writer.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, recorder
}

func newLFSHubServer(t *testing.T) (*httptest.Server, *hubRecorder) {
	t.Helper()
	recorder := &hubRecorder{requests: map[string][]byte{}, headers: map[string]http.Header{}}
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		key := request.Method + " " + request.URL.Path
		recorder.mu.Lock()
		recorder.requests[key] = body
		recorder.headers[key] = request.Header.Clone()
		recorder.mu.Unlock()

		switch key {
		case "POST /api/datasets/owner/repo/preupload/main":
			writer.Header().Set("Content-Type", "application/json")
			_, _ = writer.Write([]byte(`{"files":[{"path":"data/train.jsonl","uploadMode":"lfs"}]}`))
		case "POST /datasets/owner/repo.git/info/lfs/objects/batch":
			batch := lfsBatchRequest{}
			_ = json.Unmarshal(body, &batch)
			writer.Header().Set("Content-Type", lfsMediaType)
			_, _ = fmt.Fprintf(writer, `{"objects":[{"oid":%q,"size":%d,"actions":{`+
				`"upload":{"href":"%s/storage/object","header":{"X-Storage-Signature":"signed"}},`+
				`"verify":{"href":"%s/storage/verify"}}}]}`,
				batch.Objects[0].OID, batch.Objects[0].Size, server.URL, server.URL)
		case "PUT /storage/object", "POST /storage/verify", "POST /api/datasets/owner/repo/commit/main":
			writer.WriteHeader(http.StatusOK)
		default:
			writer.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, recorder
}

func TestHub(t *testing.T) {
	t.Parallel()

	target := Target{Namespace: "owner", Name: "repo", Private: true}

	t.Run("Should create the repository with visibility and auth", func(t *testing.T) {
		server, recorder := newHubServer(t, http.StatusOK)
		hub, err := NewHub(HubOptions{Endpoint: server.URL, Token: "secret"})
		require.NoError(t, err)

		require.NoError(t, hub.EnsureRepo(context.Background(), target))
		assert.JSONEq(t,
			`{"type":"dataset","name":"repo","organization":"owner","private":true}`,
			string(recorder.requests["POST /api/repos/create"]))
		assert.Equal(t, "Bearer secret", recorder.headers["POST /api/repos/create"].Get("Authorization"))
	})

	t.Run("Should treat an existing repository as success", func(t *testing.T) {
		server, _ := newHubServer(t, http.StatusConflict)
		hub, err := NewHub(HubOptions{Endpoint: server.URL})
		require.NoError(t, err)
		assert.NoError(t, hub.EnsureRepo(context.Background(), target))
	})

	t.Run("Should surface other create failures", func(t *testing.T) {
		server, _ := newHubServer(t, http.StatusUnauthorized)
		hub, err := NewHub(HubOptions{Endpoint: server.URL})
		require.NoError(t, err)

		err = hub.EnsureRepo(context.Background(), target)
		var statusError *StatusError
		require.True(t, errors.As(err, &statusError))
		assert.Equal(t, http.StatusUnauthorized, statusError.StatusCode)
	})

	t.Run("Should commit the split as column ordered jsonl", func(t *testing.T) {
		server, recorder := newHubServer(t, http.StatusOK)
		hub, err := NewHub(HubOptions{Endpoint: server.URL})
		require.NoError(t, err)

		require.NoError(t, hub.PublishSplit(context.Background(), target, "train", sampleRecords("q1", "q2")))

		body := recorder.requests["POST /api/datasets/owner/repo/commit/main"]
		require.NotEmpty(t, body)
		assert.Equal(t, "application/x-ndjson", recorder.headers["POST /api/datasets/owner/repo/commit/main"].Get("Content-Type"))

		lines := make([]map[string]json.RawMessage, 0)
		scanner := bufio.NewScanner(strings.NewReader(string(body)))
		for scanner.Scan() {
			line := map[string]json.RawMessage{}
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
			lines = append(lines, line)
		}
		require.Len(t, lines, 2)
		assert.JSONEq(t, `"header"`, string(lines[0]["key"]))
		assert.JSONEq(t, `"file"`, string(lines[1]["key"]))

		file := commitFile{}
		require.NoError(t, json.Unmarshal(lines[1]["value"], &file))
		assert.Equal(t, "data/train.jsonl", file.Path)
		content, err := base64.StdEncoding.DecodeString(file.Content)
		require.NoError(t, err)
		assert.Equal(t,
			"{\"index\":0,\"source_index\":0,\"question\":\"q1\",\"options\":{\"A\":\"x\",\"B\":\"y\"},\"answer\":\"A\",\"zz_extra\":1}\n"+
				"{\"index\":1,\"source_index\":10,\"question\":\"q2\",\"options\":{\"A\":\"x\",\"B\":\"y\"},\"answer\":\"A\",\"zz_extra\":1}\n",
			string(content))
	})

	t.Run("Should route files the hub marks for large storage through lfs", func(t *testing.T) {
		server, recorder := newLFSHubServer(t)
		hub, err := NewHub(HubOptions{Endpoint: server.URL, Token: "secret"})
		require.NoError(t, err)

		records := sampleRecords("q1", "q2")
		require.NoError(t, hub.PublishSplit(context.Background(), target, "train", records))

		expected := bytes.Buffer{}
		require.NoError(t, jsonl.Encode(&expected, records))
		sum := sha256.Sum256(expected.Bytes())
		oid := hex.EncodeToString(sum[:])

		preupload := preuploadRequest{}
		require.NoError(t, json.Unmarshal(recorder.requests["POST /api/datasets/owner/repo/preupload/main"], &preupload))
		require.Len(t, preupload.Files, 1)
		assert.Equal(t, "data/train.jsonl", preupload.Files[0].Path)
		assert.Equal(t, expected.Len(), preupload.Files[0].Size)

		batch := lfsBatchRequest{}
		require.NoError(t, json.Unmarshal(recorder.requests["POST /datasets/owner/repo.git/info/lfs/objects/batch"], &batch))
		assert.Equal(t, []lfsObject{{OID: oid, Size: expected.Len()}}, batch.Objects)

		assert.Equal(t, expected.Bytes(), recorder.requests["PUT /storage/object"])
		assert.Equal(t, "signed", recorder.headers["PUT /storage/object"].Get("X-Storage-Signature"))
		assert.Empty(t, recorder.headers["PUT /storage/object"].Get("Authorization"))
		assert.JSONEq(t, fmt.Sprintf(`{"oid":%q,"size":%d}`, oid, expected.Len()), string(recorder.requests["POST /storage/verify"]))

		lines := strings.Split(strings.TrimSpace(string(recorder.requests["POST /api/datasets/owner/repo/commit/main"])), "\n")
		require.Len(t, lines, 2)
		assert.JSONEq(t,
			fmt.Sprintf(`{"key":"lfsFile","value":{"path":"data/train.jsonl","algo":"sha256","oid":%q,"size":%d}}`, oid, expected.Len()),
			lines[1])
	})

	t.Run("Should fetch the first published record", func(t *testing.T) {
		server, _ := newHubServer(t, http.StatusOK)
		hub, err := NewHub(HubOptions{Endpoint: server.URL})
		require.NoError(t, err)

		record, found, err := hub.FetchFirst(context.Background(), target, "dev")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "first", dataset.StringForm(record.Question))
		assert.Equal(t, 3, *record.SourceIndex)

		_, found, err = hub.FetchFirst(context.Background(), target, "test")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Should reject a non http endpoint", func(t *testing.T) {
		_, err := NewHub(HubOptions{Endpoint: "ftp://example.com"})
		assert.Error(t, err)
	})
}

func TestBolt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	target := Target{Namespace: "owner", Name: "repo"}
	path := filepath.Join(t.TempDir(), "store", "hub.db")

	store, err := OpenBolt(path)
	require.NoError(t, err)

	err = store.PublishSplit(ctx, target, "train", sampleRecords("a"))
	require.ErrorIs(t, err, ErrRepoNotFound)

	require.NoError(t, store.EnsureRepo(ctx, target))
	require.NoError(t, store.EnsureRepo(ctx, target))
	require.NoError(t, store.PublishSplit(ctx, target, "train", sampleRecords("a", "b", "c")))
	require.NoError(t, store.PublishSplit(ctx, target, "train", sampleRecords("x", "y")))
	require.NoError(t, store.Close())

	reopened, err := OpenBolt(path)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.ReadSplit(target, "train")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "x", dataset.StringForm(records[0].Question))
	assert.Equal(t, 1, records[1].Index)
	assert.Equal(t, []string{"index", "source_index", "question", "options", "answer", "zz_extra"}, records[1].Columns())

	first, found, err := reopened.FetchFirst(ctx, target, "train")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "x", dataset.StringForm(first.Question))

	_, found, err = reopened.FetchFirst(ctx, target, "dev")
	require.NoError(t, err)
	assert.False(t, found)

	commits, err := reopened.Commits(target)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, 3, commits[0].Records)
	assert.Equal(t, 2, commits[1].Records)
	assert.NotEqual(t, commits[0].ID, commits[1].ID)
}
