package driving

import (
	"context"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

// IngestService brings documents into the corpus.
type IngestService interface {
	// Ingest normalises, chunks, embeds, stores, and indexes one raw
	// document. Atomic from the caller's perspective: on any failure
	// past the first write, everything already stored for the
	// document is rolled back before the error surfaces.
	//
	// Re-ingesting a URI that already exists replaces the previous
	// version (old chunks and vectors removed first).
	Ingest(ctx context.Context, raw *domain.RawDocument) (*IngestResult, error)

	// Remove deletes a document, its chunks, and its index entries.
	Remove(ctx context.Context, documentID string) error

	// RemoveByURI deletes the document ingested from the given URI.
	// Used by the corpus watcher when a file disappears.
	RemoveByURI(ctx context.Context, uri string) error
}

// IngestResult reports a completed ingestion.
type IngestResult struct {
	// DocumentID is the stored document's ID.
	DocumentID string

	// Title is the normalised title.
	Title string

	// ChunkCount is how many chunks were indexed.
	ChunkCount int

	// Replaced reports that a previous version of the same URI was
	// removed first.
	Replaced bool
}
