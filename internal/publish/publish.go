// Package publish pushes normalized splits to a dataset repository.
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/BegaDeveloper/medqa/internal/dataset"
)

// Target identifies a dataset repository.
type Target struct {
	Namespace string
	Name      string
	Private   bool
}

// ID is the "<namespace>/<name>" form of the target.
func (target Target) ID() string {
	return target.Namespace + "/" + target.Name
}

// Validate checks that both parts of the repository name are usable.
func (target Target) Validate() error {
	parts := []struct {
		label string
		value string
	}{
		{label: "namespace", value: target.Namespace},
		{label: "name", value: target.Name},
	}
	for _, part := range parts {
		trimmed := strings.TrimSpace(part.value)
		if trimmed == "" {
			return fmt.Errorf("repository %s is required", part.label)
		}
		if strings.Contains(trimmed, "/") {
			return fmt.Errorf("repository %s %q must not contain '/'", part.label, part.value)
		}
	}
	return nil
}

// Publisher creates a repository and overwrites one split at a time.
// Records are published in the order given, each serialized in
// dataset.ColumnOrder.
type Publisher interface {
	EnsureRepo(ctx context.Context, target Target) error
	PublishSplit(ctx context.Context, target Target, split string, records []dataset.Record) error
	Close() error
}

// Previewer reads back the first record of a published split.
type Previewer interface {
	FetchFirst(ctx context.Context, target Target, split string) (dataset.Record, bool, error)
}

// StatusError is returned when the hub answers with an unexpected status.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (statusError *StatusError) Error() string {
	body := strings.TrimSpace(statusError.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s: hub status %d: %s", statusError.Operation, statusError.StatusCode, body)
}

// RepoURL is the browsable address of a dataset repository.
func RepoURL(endpoint string, target Target) string {
	return strings.TrimRight(endpoint, "/") + "/datasets/" + target.ID()
}

func splitPath(split string) string {
	return "data/" + split + ".jsonl"
}
