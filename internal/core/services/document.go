package services

import (
	"context"
	"fmt"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
	"github.com/veritas-labs/lexquery/internal/logger"
	"github.com/veritas-labs/lexquery/internal/postprocessors/chunker"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages the ingested corpus.
type DocumentService struct {
	docStore driven.DocumentStore
	index    driven.VectorIndex
}

// NewDocumentService creates a document service.
func NewDocumentService(docStore driven.DocumentStore, index driven.VectorIndex) *DocumentService {
	return &DocumentService{
		docStore: docStore,
		index:    index,
	}
}

// List returns lightweight info for every document.
func (s *DocumentService) List(ctx context.Context) ([]domain.DocumentInfo, error) {
	return s.docStore.ListDocuments(ctx)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// GetContent reconstructs the full document text from its chunks.
// Chunks arrive ordered by position; overlapping spans collapse so
// the result matches the content the document was split from.
func (s *DocumentService) GetContent(ctx context.Context, documentID string) (string, error) {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return "", err
	}

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("get chunks: %w", err)
	}

	return chunker.Reassemble(chunks), nil
}

// GetDetails returns metadata for display.
func (s *DocumentService) GetDetails(ctx context.Context, documentID string) (*driving.DocumentDetails, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}

	// Flatten metadata to a string map for display.
	metadata := make(map[string]string)
	for key, value := range doc.Metadata {
		metadata[key] = fmt.Sprintf("%v", value)
	}

	return &driving.DocumentDetails{
		ID:         doc.ID,
		Title:      doc.Title,
		URI:        doc.URI,
		SourceType: doc.SourceType,
		ChunkCount: len(chunks),
		Sections:   sectionList(chunks),
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
		Metadata:   metadata,
	}, nil
}

// Delete removes a document, its chunks, and its index entries. The
// index goes first so searches stop surfacing the document even if
// the store deletion fails.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return err
	}

	if s.index != nil {
		if err := s.index.Delete(ctx, documentID); err != nil {
			return fmt.Errorf("delete index entries: %w", err)
		}
	}

	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	logger.Info("Deleted document %s", documentID)
	return nil
}

// sectionList collects the distinct section headings of the chunks,
// in document order.
func sectionList(chunks []domain.Chunk) []string {
	var sections []string
	seen := make(map[string]bool)
	for i := 0; i < len(chunks); i++ {
		section := chunks[i].Section
		if section == "" || seen[section] {
			continue
		}
		seen[section] = true
		sections = append(sections, section)
	}
	return sections
}
