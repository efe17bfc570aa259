package driven

import (
	"context"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by SQLite for durable storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// SaveChunks stores chunks for a document, embeddings included.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByURI retrieves a document by its source URI.
	GetDocumentByURI(ctx context.Context, uri string) (*domain.Document, error)

	// GetChunks retrieves all chunks for a document, ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns lightweight info for every document.
	ListDocuments(ctx context.Context) ([]domain.DocumentInfo, error)

	// WalkChunks streams every stored chunk, embeddings included, in
	// (document, position) order. Used to hydrate the vector index at
	// startup. Iteration stops at the first error returned by fn.
	WalkChunks(ctx context.Context, fn func(doc *domain.Document, chunk *domain.Chunk) error) error

	// Ping reports whether the store is usable.
	Ping(ctx context.Context) error
}

// MetaStore persists small key-value invariants that must survive
// restarts, such as the index dimension and similarity metric.
type MetaStore interface {
	// GetMeta returns the value for key, or ErrNotFound.
	GetMeta(ctx context.Context, key string) (string, error)

	// SetMeta stores the value for key.
	SetMeta(ctx context.Context, key, value string) error
}

// Well-known meta keys.
const (
	// MetaIndexDimensions records the vector dimension the corpus was
	// embedded at. A different embedding model cannot be mixed in.
	MetaIndexDimensions = "index.dimensions"

	// MetaIndexMetric records the similarity metric, fixed at creation.
	MetaIndexMetric = "index.metric"

	// MetaEmbeddingModel records the embedding model name.
	MetaEmbeddingModel = "embedding.model"
)
