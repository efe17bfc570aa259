package driven

import "context"

// IndexEntry is one (chunk, vector, metadata snapshot) record held by
// the vector index. Entries are created at ingestion time, never
// mutated, and deleted only with their parent document.
type IndexEntry struct {
	// ChunkID is the unique chunk identifier.
	ChunkID string

	// DocumentID is the parent document, the unit of deletion.
	DocumentID string

	// Vector is the chunk's embedding.
	Vector []float32

	// Metadata is a small snapshot used for filtering and attribution
	// (source type, section heading). Copied in, never shared.
	Metadata map[string]string
}

// VectorFilter restricts a search by metadata.
type VectorFilter struct {
	// SourceType matches the "source_type" metadata key when set.
	SourceType string

	// DocumentIDs restricts hits to these documents when non-empty.
	DocumentIDs []string
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the matched chunk's parent document.
	DocumentID string

	// Similarity is the cosine similarity score in [0,1].
	Similarity float64

	// Metadata is the entry's metadata snapshot.
	Metadata map[string]string
}

// VectorIndex stores chunk vectors and answers nearest-neighbour
// queries. The similarity metric and dimension are fixed when the
// index is created and survive restarts.
//
// Concurrency contract: Search may run concurrently with Upsert and
// Delete and never observes partially written entries. Locking is
// scoped to segments, not the whole index, so ingestion does not
// serialise queries.
//
// Determinism contract: for a fixed index state, repeated searches
// with the same query return the identical ranked order; similarity
// ties break by insertion order, earlier entries first.
type VectorIndex interface {
	// Upsert adds entries. Any entry whose vector dimension differs
	// from the index dimension is rejected with ErrDimensionMismatch
	// and the whole batch is discarded, leaving the index unchanged.
	Upsert(ctx context.Context, entries []IndexEntry) error

	// Search returns the k entries most similar to the query vector,
	// optionally restricted by filter. Entries of deleted documents
	// are never returned.
	Search(ctx context.Context, query []float32, k int, filter *VectorFilter) ([]VectorHit, error)

	// Delete removes every entry belonging to the document.
	Delete(ctx context.Context, documentID string) error

	// Dimensions returns the fixed vector dimension, or 0 before the
	// first upsert when the index was created without one.
	Dimensions() int

	// Size returns the number of live entries.
	Size() int

	// Ping reports whether the index is usable.
	Ping(ctx context.Context) error

	// Close flushes pending state and releases resources.
	Close() error
}
