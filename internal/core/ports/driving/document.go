package driving

import (
	"context"
	"time"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

// DocumentService manages the ingested corpus.
type DocumentService interface {
	// List returns lightweight info for every document.
	List(ctx context.Context) ([]domain.DocumentInfo, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// GetContent reconstructs the full document text from its chunks,
	// with overlaps removed.
	GetContent(ctx context.Context, documentID string) (string, error)

	// GetDetails returns metadata for display.
	GetDetails(ctx context.Context, documentID string) (*DocumentDetails, error)

	// Delete removes a document, its chunks, and its index entries.
	Delete(ctx context.Context, documentID string) error
}

// DocumentDetails provides a standardised view of document metadata.
type DocumentDetails struct {
	// ID is the unique document identifier.
	ID string

	// Title is the document title.
	Title string

	// URI is the original location.
	URI string

	// SourceType is the ingestion channel ("upload", "filesystem").
	SourceType string

	// ChunkCount is the number of chunks.
	ChunkCount int

	// Sections lists detected headings in document order.
	Sections []string

	// CreatedAt is when the document was ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-ingested.
	UpdatedAt time.Time

	// Metadata contains flattened key-value pairs for display.
	Metadata map[string]string
}
