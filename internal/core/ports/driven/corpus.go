package driven

import (
	"context"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

// CorpusSource feeds documents into ingestion from a location outside
// the upload path, currently the local filesystem.
type CorpusSource interface {
	// Walk emits every ingestable document under the configured root.
	// The documents channel closes when the walk finishes; the errors
	// channel receives per-file failures without stopping the walk.
	Walk(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Watch listens for changes under the root and emits them until
	// the context is cancelled. Events are debounced so an editor's
	// write burst produces one change.
	Watch(ctx context.Context) (<-chan domain.CorpusChange, error)

	// Validate checks the root exists and is readable.
	Validate(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CommandRunner executes an external command and returns its output.
// Used by normalisers that shell out to conversion tools (e.g.
// pdftotext for scanned PDFs).
type CommandRunner interface {
	// Run executes the named command with arguments and returns its
	// combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}
