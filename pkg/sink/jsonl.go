// Package sink persists harvested comments.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"townhall-comments/pkg/domain"
)

// RecordSink receives completed comments in chunk order.
type RecordSink interface {
	Append(ctx context.Context, comments []*domain.Comment) error
}

// JSONLSink appends one JSON object per comment to a log file. The file is
// opened for each Append and closed again, so no handle outlives a chunk.
// Single-writer: the orchestrator appends serially, no locking is done.
type JSONLSink struct {
	path string
}

// NewJSONLSink creates a sink writing to the given path. The directory is
// assumed to exist.
func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{path: path}
}

// Append writes the comments to the log in input order.
func (s *JSONLSink) Append(ctx context.Context, comments []*domain.Comment) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output log: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	// comment_html carries raw markup; keep it readable in the log.
	enc.SetEscapeHTML(false)
	for _, c := range comments {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to write comment %q: %w", c.URL, err)
		}
	}

	return nil
}
