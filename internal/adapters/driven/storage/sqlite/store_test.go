package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "lexquery-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// createTestDocument saves a document so chunk rows have a parent.
func createTestDocument(t *testing.T, store *Store, docID, uri string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	doc := &domain.Document{
		ID:         docID,
		URI:        uri,
		Title:      "Test Document " + docID,
		SourceType: "upload",
		Content:    "Full text of " + docID,
		Metadata:   map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := store.DocumentStore().SaveDocument(ctx, doc)
	require.NoError(t, err)
}

// ==================== Store Creation and Initialization Tests ====================

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "lexquery-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "corpus.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)

	err = store.db.Ping()
	assert.NoError(t, err)
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "lexquery-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	nestedDir := filepath.Join(tempDir, "nested", "path", "to", "db")
	store, err := NewStore(nestedDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	assert.DirExists(t, nestedDir)
}

func TestNewStore_Migrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var count int
	err := store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Greater(t, count, 0, "should have at least one migration")

	tables := []string{"documents", "chunks", "meta"}
	for _, table := range tables {
		var tableExists int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&tableExists)
		require.NoError(t, err)
		assert.Equal(t, 1, tableExists, "table %s should exist", table)
	}
}

func TestNewStore_ForeignKeysEnabled(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var fkEnabled int
	err := store.db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	require.NoError(t, err)
	assert.Equal(t, 1, fkEnabled, "foreign keys should be enabled")
}

func TestStore_MigrationIdempotency(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "lexquery-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store1, err := NewStore(tempDir)
	require.NoError(t, err)

	var count1 int
	err = store1.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count1)
	require.NoError(t, err)
	require.NoError(t, store1.Close())

	// Reopening must not re-apply anything.
	store2, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store2.Close()

	var count2 int
	err = store2.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count2)
	require.NoError(t, err)
	assert.Equal(t, count1, count2)
}

func TestStore_Close(t *testing.T) {
	store, _ := setupTestStore(t)

	err := store.Close()
	assert.NoError(t, err)

	err = store.db.Ping()
	assert.Error(t, err)
}

func TestStore_InterfaceGetters(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.NotNil(t, store.DocumentStore())
	assert.NotNil(t, store.MetaStore())
}

// ==================== DocumentStore Tests ====================

func TestDocumentStore_SaveAndGetDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()

	now := time.Now().UTC().Truncate(time.Second)
	doc := &domain.Document{
		ID:         "doc-1",
		URI:        "contracts/msa-2024.pdf",
		Title:      "Master Services Agreement",
		SourceType: "upload",
		Content:    "This Agreement is entered into by and between the parties.",
		Metadata: map[string]any{
			"mime_type": "application/pdf",
			"pages":     float64(12),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := docStore.SaveDocument(ctx, doc)
	require.NoError(t, err)

	retrieved, err := docStore.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, doc.ID, retrieved.ID)
	assert.Equal(t, doc.URI, retrieved.URI)
	assert.Equal(t, doc.Title, retrieved.Title)
	assert.Equal(t, doc.SourceType, retrieved.SourceType)
	assert.Equal(t, doc.Content, retrieved.Content)
	assert.Equal(t, "application/pdf", retrieved.Metadata["mime_type"])
	assert.Equal(t, float64(12), retrieved.Metadata["pages"])
	assert.True(t, doc.CreatedAt.Equal(retrieved.CreatedAt))
	assert.True(t, doc.UpdatedAt.Equal(retrieved.UpdatedAt))
}

func TestDocumentStore_SaveDocument_DefaultsTimestamps(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()

	doc := &domain.Document{
		ID:  "doc-1",
		URI: "notes.txt",
	}
	err := docStore.SaveDocument(ctx, doc)
	require.NoError(t, err)

	assert.False(t, doc.CreatedAt.IsZero())
	assert.False(t, doc.UpdatedAt.IsZero())
}

func TestDocumentStore_SaveDocument_Update(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()

	now := time.Now().UTC().Truncate(time.Second)
	doc := &domain.Document{
		ID:        "doc-1",
		URI:       "contracts/nda.txt",
		Title:     "Original Title",
		Content:   "Original content",
		Metadata:  map[string]any{"version": float64(1)},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := docStore.SaveDocument(ctx, doc)
	require.NoError(t, err)

	later := now.Add(time.Hour)
	doc.Title = "Updated Title"
	doc.Content = "Updated content"
	doc.Metadata = map[string]any{"version": float64(2)}
	doc.UpdatedAt = later
	err = docStore.SaveDocument(ctx, doc)
	require.NoError(t, err)

	retrieved, err := docStore.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated Title", retrieved.Title)
	assert.Equal(t, "Updated content", retrieved.Content)
	assert.Equal(t, float64(2), retrieved.Metadata["version"])
	assert.True(t, later.Equal(retrieved.UpdatedAt))
}

func TestDocumentStore_GetDocument_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	retrieved, err := store.DocumentStore().GetDocument(context.Background(), "non-existent-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, retrieved)
}

func TestDocumentStore_GetDocumentByURI(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "contracts/lease.txt")

	retrieved, err := docStore.GetDocumentByURI(ctx, "contracts/lease.txt")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", retrieved.ID)

	_, err = docStore.GetDocumentByURI(ctx, "contracts/unknown.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_URIIsUnique(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "contracts/lease.txt")

	// A second document at the same URI violates the unique index. The
	// ingest flow deletes the old document before saving the replacement.
	dup := &domain.Document{
		ID:  "doc-2",
		URI: "contracts/lease.txt",
	}
	err := docStore.SaveDocument(ctx, dup)
	assert.Error(t, err)
}

func TestDocumentStore_DeleteDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "contracts/old.txt")

	err := docStore.DeleteDocument(ctx, "doc-1")
	require.NoError(t, err)

	retrieved, err := docStore.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, retrieved)
}

func TestDocumentStore_DeleteDocument_CascadesChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "contracts/old.txt")

	chunks := []domain.Chunk{
		{
			ID:         "chunk-1",
			DocumentID: "doc-1",
			Content:    "Chunk 1",
			Position:   0,
			Embedding:  []float32{0.1},
		},
	}
	err := docStore.SaveChunks(ctx, chunks)
	require.NoError(t, err)

	err = docStore.DeleteDocument(ctx, "doc-1")
	require.NoError(t, err)

	retrieved, err := docStore.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, retrieved)
}

func TestDocumentStore_ListDocuments(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"doc-a", "doc-b"} {
		doc := &domain.Document{
			ID:         id,
			URI:        "contracts/" + id + ".txt",
			Title:      "Title " + id,
			SourceType: "upload",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, docStore.SaveDocument(ctx, doc))
	}

	chunks := []domain.Chunk{
		{ID: "c1", DocumentID: "doc-a", Content: "one", Position: 0},
		{ID: "c2", DocumentID: "doc-a", Content: "two", Position: 1},
		{ID: "c3", DocumentID: "doc-b", Content: "three", Position: 0},
	}
	require.NoError(t, docStore.SaveChunks(ctx, chunks))

	infos, err := docStore.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "doc-a", infos[0].ID)
	assert.Equal(t, 2, infos[0].ChunkCount)
	assert.Equal(t, "upload", infos[0].SourceType)
	assert.Equal(t, "doc-b", infos[1].ID)
	assert.Equal(t, 1, infos[1].ChunkCount)
}

func TestDocumentStore_ListDocuments_Empty(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	infos, err := store.DocumentStore().ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

// ==================== Chunk Tests ====================

func TestDocumentStore_SaveAndGetChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "contracts/msa.txt")

	chunks := []domain.Chunk{
		{
			ID:          "chunk-1",
			DocumentID:  "doc-1",
			Content:     "First chunk content",
			Position:    0,
			StartOffset: 0,
			EndOffset:   19,
			Section:     "ARTICLE I",
			Embedding:   []float32{0.1, 0.2, 0.3},
			Metadata:    map[string]any{"page": float64(1)},
		},
		{
			ID:          "chunk-2",
			DocumentID:  "doc-1",
			Content:     "Second chunk content",
			Position:    1,
			StartOffset: 14,
			EndOffset:   34,
			Section:     "ARTICLE II",
			Embedding:   []float32{0.4, 0.5, 0.6},
			Metadata:    map[string]any{"page": float64(2)},
		},
	}

	err := docStore.SaveChunks(ctx, chunks)
	require.NoError(t, err)

	retrieved, err := docStore.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, retrieved, 2)

	for i, chunk := range retrieved {
		assert.Equal(t, i, chunk.Position)
		assert.Equal(t, chunks[i].Content, chunk.Content)
		assert.Equal(t, chunks[i].StartOffset, chunk.StartOffset)
		assert.Equal(t, chunks[i].EndOffset, chunk.EndOffset)
		assert.Equal(t, chunks[i].Section, chunk.Section)
		assert.Equal(t, chunks[i].Embedding, chunk.Embedding)
		assert.Equal(t, chunks[i].Metadata["page"], chunk.Metadata["page"])
	}
}

func TestDocumentStore_GetChunk(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "contracts/msa.txt")

	chunk := domain.Chunk{
		ID:          "chunk-1",
		DocumentID:  "doc-1",
		Content:     "Test chunk content",
		Position:    0,
		StartOffset: 100,
		EndOffset:   118,
		Section:     "Section 2.1",
		Embedding:   []float32{0.1, 0.2, 0.3},
		Metadata:    map[string]any{"test": "value"},
	}

	err := docStore.SaveChunks(ctx, []domain.Chunk{chunk})
	require.NoError(t, err)

	retrieved, err := docStore.GetChunk(ctx, chunk.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, chunk.ID, retrieved.ID)
	assert.Equal(t, chunk.DocumentID, retrieved.DocumentID)
	assert.Equal(t, chunk.Content, retrieved.Content)
	assert.Equal(t, chunk.StartOffset, retrieved.StartOffset)
	assert.Equal(t, chunk.EndOffset, retrieved.EndOffset)
	assert.Equal(t, chunk.Section, retrieved.Section)
	assert.Equal(t, chunk.Embedding, retrieved.Embedding)
	assert.Equal(t, chunk.Metadata["test"], retrieved.Metadata["test"])
}

func TestDocumentStore_GetChunk_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	retrieved, err := store.DocumentStore().GetChunk(context.Background(), "non-existent-chunk")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, retrieved)
}

func TestDocumentStore_SaveChunks_Update(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "contracts/msa.txt")

	chunk := domain.Chunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Content:    "Original content",
		Position:   0,
		Embedding:  []float32{0.1, 0.2, 0.3},
	}
	err := docStore.SaveChunks(ctx, []domain.Chunk{chunk})
	require.NoError(t, err)

	chunk.Content = "Updated content"
	chunk.Embedding = []float32{0.9, 0.8, 0.7}
	err = docStore.SaveChunks(ctx, []domain.Chunk{chunk})
	require.NoError(t, err)

	retrieved, err := docStore.GetChunk(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated content", retrieved.Content)
	assert.Equal(t, []float32{0.9, 0.8, 0.7}, retrieved.Embedding)
}

func TestDocumentStore_SaveChunks_EmptyEmbedding(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "contracts/msa.txt")

	chunk := domain.Chunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Content:    "Content without embedding",
		Position:   0,
		Embedding:  nil,
	}

	err := docStore.SaveChunks(ctx, []domain.Chunk{chunk})
	require.NoError(t, err)

	retrieved, err := docStore.GetChunk(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Nil(t, retrieved.Embedding)
}

func TestStore_LargeEmbeddings(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "contracts/msa.txt")

	largeEmbedding := make([]float32, 1536)
	for i := range largeEmbedding {
		largeEmbedding[i] = float32(i) * 0.001
	}

	chunk := domain.Chunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Content:    "Test with large embedding",
		Position:   0,
		Embedding:  largeEmbedding,
	}

	err := docStore.SaveChunks(ctx, []domain.Chunk{chunk})
	require.NoError(t, err)

	retrieved, err := docStore.GetChunk(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Len(t, retrieved.Embedding, 1536)
	assert.Equal(t, largeEmbedding, retrieved.Embedding)
}

// ==================== WalkChunks Tests ====================

func TestDocumentStore_WalkChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"doc-a", "doc-b"} {
		doc := &domain.Document{
			ID:        id,
			URI:       "contracts/" + id + ".txt",
			Content:   "content of " + id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, docStore.SaveDocument(ctx, doc))
	}

	chunks := []domain.Chunk{
		{ID: "a1", DocumentID: "doc-a", Content: "one", Position: 1, Embedding: []float32{0.2}},
		{ID: "a0", DocumentID: "doc-a", Content: "zero", Position: 0, Embedding: []float32{0.1}},
		{ID: "b0", DocumentID: "doc-b", Content: "first", Position: 0, Embedding: []float32{0.3}},
	}
	require.NoError(t, docStore.SaveChunks(ctx, chunks))

	var visited []string
	err := docStore.WalkChunks(ctx, func(doc *domain.Document, chunk *domain.Chunk) error {
		require.Equal(t, doc.ID, chunk.DocumentID)
		require.NotEmpty(t, chunk.Embedding)
		visited = append(visited, chunk.ID)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a0", "a1", "b0"}, visited)
}

func TestDocumentStore_WalkChunks_StopsOnError(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "contracts/msa.txt")

	chunks := []domain.Chunk{
		{ID: "c0", DocumentID: "doc-1", Content: "zero", Position: 0},
		{ID: "c1", DocumentID: "doc-1", Content: "one", Position: 1},
	}
	require.NoError(t, docStore.SaveChunks(ctx, chunks))

	boom := errors.New("boom")
	visits := 0
	err := docStore.WalkChunks(ctx, func(doc *domain.Document, chunk *domain.Chunk) error {
		visits++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, visits)
}

func TestDocumentStore_Ping(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.NoError(t, store.DocumentStore().Ping(context.Background()))
}

// ==================== MetaStore Tests ====================

func TestMetaStore_SetAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	metaStore := store.MetaStore()

	err := metaStore.SetMeta(ctx, driven.MetaIndexDimensions, "768")
	require.NoError(t, err)

	value, err := metaStore.GetMeta(ctx, driven.MetaIndexDimensions)
	require.NoError(t, err)
	assert.Equal(t, "768", value)
}

func TestMetaStore_Get_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.MetaStore().GetMeta(context.Background(), "unknown.key")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMetaStore_Overwrite(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	metaStore := store.MetaStore()

	require.NoError(t, metaStore.SetMeta(ctx, driven.MetaEmbeddingModel, "nomic-embed-text"))
	require.NoError(t, metaStore.SetMeta(ctx, driven.MetaEmbeddingModel, "text-embedding-3-small"))

	value, err := metaStore.GetMeta(ctx, driven.MetaEmbeddingModel)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", value)
}

// ==================== Embedding Codec Tests ====================

func TestFloat32SliceToBytes(t *testing.T) {
	tests := []struct {
		name   string
		input  []float32
		output []byte
	}{
		{
			name:   "empty slice",
			input:  []float32{},
			output: nil,
		},
		{
			name:   "nil slice",
			input:  nil,
			output: nil,
		},
		{
			name:   "single value",
			input:  []float32{1.0},
			output: []byte{0x00, 0x00, 0x80, 0x3f},
		},
		{
			name:  "multiple values",
			input: []float32{0.0, 1.0, -1.0},
			output: []byte{
				0x00, 0x00, 0x00, 0x00, // 0.0
				0x00, 0x00, 0x80, 0x3f, // 1.0
				0x00, 0x00, 0x80, 0xbf, // -1.0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := float32SliceToBytes(tt.input)
			assert.Equal(t, tt.output, result)
		})
	}
}

func TestFloat32Roundtrip(t *testing.T) {
	original := []float32{0.1, 0.2, 0.3, -0.5, 100.5, -200.75}

	bytes := float32SliceToBytes(original)
	roundtrip := bytesToFloat32Slice(bytes)

	assert.Equal(t, original, roundtrip)
}

// ==================== Error Handling Tests ====================

func TestStore_ContextCancellation(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := &domain.Document{ID: "doc-1", URI: "contracts/msa.txt"}
	err := store.DocumentStore().SaveDocument(ctx, doc)
	assert.Error(t, err)
}

func TestDocumentStore_InvalidDocumentJSON(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()
	_, err := store.db.ExecContext(ctx, `
		INSERT INTO documents (id, uri, title, source_type, content, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, "doc-1", "contracts/msa.txt", "Test", "upload", "", "invalid-json", now, now)
	require.NoError(t, err)

	_, err = store.DocumentStore().GetDocument(ctx, "doc-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshaling")
}

func TestDocumentStore_InvalidChunkJSON(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestDocument(t, store, "doc-1", "contracts/msa.txt")

	_, err := store.db.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`, "chunk-1", "doc-1", "Test content", 0, nil, "invalid-json")
	require.NoError(t, err)

	_, err = store.DocumentStore().GetChunk(ctx, "chunk-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshaling")
}

// ==================== Concurrent Access Tests ====================

func TestStore_ConcurrentWrites(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docStore := store.DocumentStore()

	const numGoroutines = 10
	done := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			doc := &domain.Document{
				ID:  string(rune('a' + id)),
				URI: "contracts/" + string(rune('a'+id)) + ".txt",
			}
			done <- docStore.SaveDocument(ctx, doc)
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		err := <-done
		assert.NoError(t, err)
	}

	infos, err := docStore.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, numGoroutines)
}
