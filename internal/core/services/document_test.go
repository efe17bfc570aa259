package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/lexquery/internal/adapters/driven/storage/memory"
	"github.com/veritas-labs/lexquery/internal/core/domain"
)

func TestDocumentService_List(t *testing.T) {
	svc := NewDocumentService(setupCorpusStore(t), &mockVectorIndex{})

	infos, err := svc.List(context.Background())

	require.NoError(t, err)
	require.Len(t, infos, 3)
	ids := make(map[string]int)
	for _, info := range infos {
		ids[info.ID] = info.ChunkCount
	}
	assert.Equal(t, 2, ids["doc-msa"])
	assert.Equal(t, 2, ids["doc-nda"])
	assert.Equal(t, 2, ids["doc-lease"])
}

func TestDocumentService_Get(t *testing.T) {
	svc := NewDocumentService(setupCorpusStore(t), &mockVectorIndex{})

	doc, err := svc.Get(context.Background(), "doc-msa")

	require.NoError(t, err)
	assert.Equal(t, "Master Services Agreement", doc.Title)
}

func TestDocumentService_Get_NotFound(t *testing.T) {
	svc := NewDocumentService(setupCorpusStore(t), &mockVectorIndex{})

	_, err := svc.Get(context.Background(), "no-such-document")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_GetContent_CollapsesOverlap(t *testing.T) {
	store := memory.NewDocumentStore()
	ctx := context.Background()
	content := "The parties agree as follows. Services begin on the effective date."

	require.NoError(t, store.SaveDocument(ctx, &domain.Document{
		ID:        "doc-1",
		Title:     "Engagement Letter",
		Content:   content,
		CreatedAt: time.Now(),
	}))
	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{
		{
			ID: "c-0", DocumentID: "doc-1", Position: 0,
			Content:     content[0:40],
			StartOffset: 0, EndOffset: 40,
		},
		{
			ID: "c-1", DocumentID: "doc-1", Position: 1,
			Content:     content[30:],
			StartOffset: 30, EndOffset: len(content),
		},
	}))

	svc := NewDocumentService(store, &mockVectorIndex{})
	got, err := svc.GetContent(ctx, "doc-1")

	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDocumentService_GetContent_NotFound(t *testing.T) {
	svc := NewDocumentService(setupCorpusStore(t), &mockVectorIndex{})

	_, err := svc.GetContent(context.Background(), "no-such-document")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_GetDetails(t *testing.T) {
	store := setupCorpusStore(t)
	ctx := context.Background()

	// Attach display metadata to one document.
	doc, err := store.GetDocument(ctx, "doc-msa")
	require.NoError(t, err)
	doc.Metadata = map[string]any{"pages": 12}
	require.NoError(t, store.SaveDocument(ctx, doc))

	svc := NewDocumentService(store, &mockVectorIndex{})
	details, err := svc.GetDetails(ctx, "doc-msa")

	require.NoError(t, err)
	assert.Equal(t, "Master Services Agreement", details.Title)
	assert.Equal(t, "file:///corpus/msa.pdf", details.URI)
	assert.Equal(t, "filesystem", details.SourceType)
	assert.Equal(t, 2, details.ChunkCount)
	assert.Equal(t, []string{"Section 8.1 Termination", "Section 4.2 Payment"}, details.Sections)
	assert.Equal(t, "12", details.Metadata["pages"])
}

func TestDocumentService_Delete(t *testing.T) {
	store := setupCorpusStore(t)
	index := &mockVectorIndex{}
	svc := NewDocumentService(store, index)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "doc-msa"))

	assert.Equal(t, []string{"doc-msa"}, index.deleted)
	_, err := store.GetDocument(ctx, "doc-msa")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	infos, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestDocumentService_Delete_IndexFailureKeepsDocument(t *testing.T) {
	store := setupCorpusStore(t)
	index := &mockVectorIndex{deleteErr: errors.New("index locked")}
	svc := NewDocumentService(store, index)
	ctx := context.Background()

	err := svc.Delete(ctx, "doc-msa")

	require.Error(t, err)
	_, getErr := store.GetDocument(ctx, "doc-msa")
	assert.NoError(t, getErr, "the document survives when its index entries cannot be removed")
}

func TestDocumentService_Delete_NotFound(t *testing.T) {
	svc := NewDocumentService(setupCorpusStore(t), &mockVectorIndex{})

	err := svc.Delete(context.Background(), "no-such-document")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_Delete_NilIndex(t *testing.T) {
	store := setupCorpusStore(t)
	svc := NewDocumentService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "doc-lease"))

	_, err := store.GetDocument(ctx, "doc-lease")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSectionList(t *testing.T) {
	chunks := []domain.Chunk{
		{Section: "ARTICLE I"},
		{Section: ""},
		{Section: "ARTICLE II"},
		{Section: "ARTICLE I"},
		{Section: "ARTICLE III"},
	}

	assert.Equal(t, []string{"ARTICLE I", "ARTICLE II", "ARTICLE III"}, sectionList(chunks))
	assert.Nil(t, sectionList(nil))
}
