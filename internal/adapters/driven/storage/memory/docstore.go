// Package memory provides in-memory implementations of the storage ports,
// used by tests and by the TUI's offline preview mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
	byURI     map[string]string
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
		byURI:     make(map[string]string),
	}
}

// SaveDocument stores or updates a document. A URI can only belong to one
// document, matching the unique index the SQLite store enforces.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if holder, ok := s.byURI[doc.URI]; ok && holder != doc.ID {
		return fmt.Errorf("%w: uri %q already belongs to document %s",
			domain.ErrInvalidInput, doc.URI, holder)
	}

	if old, ok := s.documents[doc.ID]; ok && old.URI != doc.URI {
		delete(s.byURI, old.URI)
	}

	s.documents[doc.ID] = *doc
	s.byURI[doc.URI] = doc.ID
	return nil
}

// SaveChunks stores chunks for a document, replacing any previous set.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docID := chunks[0].DocumentID
	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	sort.Slice(stored, func(i, j int) bool { return stored[i].Position < stored[j].Position })
	s.chunks[docID] = stored
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocumentByURI retrieves a document by its source URI.
func (s *DocumentStore) GetDocumentByURI(_ context.Context, uri string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byURI[uri]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := s.documents[id]
	return &doc, nil
}

// GetChunks retrieves all chunks for a document, ordered by position.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks, ok := s.chunks[documentID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			if chunk.ID == id {
				return &chunk, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.documents[id]; ok {
		delete(s.byURI, doc.URI)
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// ListDocuments returns lightweight info for every document, oldest first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]domain.DocumentInfo, 0, len(s.documents))
	for id, doc := range s.documents {
		infos = append(infos, domain.DocumentInfo{
			ID:         id,
			Title:      doc.Title,
			URI:        doc.URI,
			SourceType: doc.SourceType,
			ChunkCount: len(s.chunks[id]),
			CreatedAt:  doc.CreatedAt,
			UpdatedAt:  doc.UpdatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// WalkChunks streams every stored chunk in (document, position) order.
func (s *DocumentStore) WalkChunks(_ context.Context, fn func(doc *domain.Document, chunk *domain.Chunk) error) error {
	s.mu.RLock()
	docs := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	chunksByDoc := make(map[string][]domain.Chunk, len(s.chunks))
	for id, chunks := range s.chunks {
		cp := make([]domain.Chunk, len(chunks))
		copy(cp, chunks)
		chunksByDoc[id] = cp
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})

	for i := range docs {
		chunks := chunksByDoc[docs[i].ID]
		for j := range chunks {
			if err := fn(&docs[i], &chunks[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Ping reports whether the store is usable. Always nil for memory.
func (s *DocumentStore) Ping(_ context.Context) error {
	return nil
}

// Ensure MetaStore implements the interface.
var _ driven.MetaStore = (*MetaStore)(nil)

// MetaStore is an in-memory implementation of driven.MetaStore.
type MetaStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMetaStore creates a new in-memory meta store.
func NewMetaStore() *MetaStore {
	return &MetaStore{values: make(map[string]string)}
}

// GetMeta returns the value for key, or ErrNotFound.
func (s *MetaStore) GetMeta(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return value, nil
}

// SetMeta stores the value for key.
func (s *MetaStore) SetMeta(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
