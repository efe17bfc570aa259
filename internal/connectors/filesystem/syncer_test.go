package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
)

type mockCorpusSource struct {
	docs     []domain.RawDocument
	changes  chan domain.CorpusChange
	watchErr error
	closed   bool
}

var _ driven.CorpusSource = (*mockCorpusSource)(nil)

func (m *mockCorpusSource) Walk(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, 1)
	go func() {
		defer close(docs)
		defer close(errs)
		for _, doc := range m.docs {
			select {
			case docs <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()
	return docs, errs
}

func (m *mockCorpusSource) Watch(context.Context) (<-chan domain.CorpusChange, error) {
	if m.watchErr != nil {
		return nil, m.watchErr
	}
	return m.changes, nil
}

func (m *mockCorpusSource) Validate(context.Context) error { return nil }

func (m *mockCorpusSource) Close() error {
	m.closed = true
	return nil
}

type mockIngestService struct {
	mu        sync.Mutex
	ingested  []string
	removed   []string
	ingestErr error
}

var _ driving.IngestService = (*mockIngestService)(nil)

func (m *mockIngestService) Ingest(_ context.Context, raw *domain.RawDocument) (*driving.IngestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ingestErr != nil {
		return nil, m.ingestErr
	}
	m.ingested = append(m.ingested, raw.URI)
	return &driving.IngestResult{DocumentID: "doc-1", Title: "Doc", ChunkCount: 2}, nil
}

func (m *mockIngestService) Remove(context.Context, string) error { return nil }

func (m *mockIngestService) RemoveByURI(_ context.Context, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, uri)
	return nil
}

func (m *mockIngestService) ingestedURIs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ingested...)
}

func (m *mockIngestService) removedURIs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}

type mockDocumentService struct {
	infos   []domain.DocumentInfo
	listErr error
}

var _ driving.DocumentService = (*mockDocumentService)(nil)

func (m *mockDocumentService) List(context.Context) ([]domain.DocumentInfo, error) {
	return m.infos, m.listErr
}

func (m *mockDocumentService) Get(context.Context, string) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) GetContent(context.Context, string) (string, error) {
	return "", domain.ErrNotFound
}

func (m *mockDocumentService) GetDetails(context.Context, string) (*driving.DocumentDetails, error) {
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) Delete(context.Context, string) error { return nil }

func rawDoc(uri string, modified time.Time) domain.RawDocument {
	return domain.RawDocument{
		URI:        uri,
		SourceType: "filesystem",
		MIMEType:   "text/plain",
		Content:    []byte("content"),
		Metadata:   map[string]any{"modified_at": modified},
	}
}

func TestSyncer_SyncOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests every new document", func(t *testing.T) {
		src := &mockCorpusSource{docs: []domain.RawDocument{
			rawDoc("file:///corpus/a.txt", time.Now()),
			rawDoc("file:///corpus/b.txt", time.Now()),
		}}
		ingest := &mockIngestService{}
		docs := &mockDocumentService{}

		syncer := NewSyncer(src, ingest, docs)
		require.NoError(t, syncer.SyncOnce(ctx))

		assert.Equal(t, []string{"file:///corpus/a.txt", "file:///corpus/b.txt"}, ingest.ingestedURIs())
		assert.Empty(t, ingest.removedURIs())
	})

	t.Run("skips documents unchanged since their last ingest", func(t *testing.T) {
		lastIngest := time.Now()
		src := &mockCorpusSource{docs: []domain.RawDocument{
			rawDoc("file:///corpus/stable.txt", lastIngest.Add(-time.Hour)),
		}}
		ingest := &mockIngestService{}
		docs := &mockDocumentService{infos: []domain.DocumentInfo{
			{URI: "file:///corpus/stable.txt", SourceType: "filesystem", UpdatedAt: lastIngest},
		}}

		syncer := NewSyncer(src, ingest, docs)
		require.NoError(t, syncer.SyncOnce(ctx))

		assert.Empty(t, ingest.ingestedURIs())
		assert.Empty(t, ingest.removedURIs())
	})

	t.Run("re-ingests documents modified after their last ingest", func(t *testing.T) {
		lastIngest := time.Now().Add(-time.Hour)
		src := &mockCorpusSource{docs: []domain.RawDocument{
			rawDoc("file:///corpus/edited.txt", time.Now()),
		}}
		ingest := &mockIngestService{}
		docs := &mockDocumentService{infos: []domain.DocumentInfo{
			{URI: "file:///corpus/edited.txt", SourceType: "filesystem", UpdatedAt: lastIngest},
		}}

		syncer := NewSyncer(src, ingest, docs)
		require.NoError(t, syncer.SyncOnce(ctx))

		assert.Equal(t, []string{"file:///corpus/edited.txt"}, ingest.ingestedURIs())
	})

	t.Run("ingests documents without a modification time", func(t *testing.T) {
		src := &mockCorpusSource{docs: []domain.RawDocument{
			{URI: "file:///corpus/odd.txt", SourceType: "filesystem", Content: []byte("x")},
		}}
		ingest := &mockIngestService{}
		docs := &mockDocumentService{infos: []domain.DocumentInfo{
			{URI: "file:///corpus/odd.txt", SourceType: "filesystem", UpdatedAt: time.Now()},
		}}

		syncer := NewSyncer(src, ingest, docs)
		require.NoError(t, syncer.SyncOnce(ctx))

		assert.Equal(t, []string{"file:///corpus/odd.txt"}, ingest.ingestedURIs())
	})

	t.Run("removes documents whose files vanished", func(t *testing.T) {
		src := &mockCorpusSource{}
		ingest := &mockIngestService{}
		docs := &mockDocumentService{infos: []domain.DocumentInfo{
			{URI: "file:///nowhere/gone.txt", SourceType: "filesystem", UpdatedAt: time.Now()},
		}}

		syncer := NewSyncer(src, ingest, docs)
		require.NoError(t, syncer.SyncOnce(ctx))

		assert.Equal(t, []string{"file:///nowhere/gone.txt"}, ingest.removedURIs())
	})

	t.Run("keeps documents whose files remain on disk", func(t *testing.T) {
		tempDir, err := os.MkdirTemp("", "lexquery-test-sync-keep-*")
		require.NoError(t, err)
		defer os.RemoveAll(tempDir)

		// Present on disk but not produced by the walk, as happens
		// when a file grows past the size bound.
		bigFile := filepath.Join(tempDir, "big.txt")
		require.NoError(t, os.WriteFile(bigFile, []byte("too big now"), 0644))

		src := &mockCorpusSource{}
		ingest := &mockIngestService{}
		docs := &mockDocumentService{infos: []domain.DocumentInfo{
			{URI: URIForPath(bigFile), SourceType: "filesystem", UpdatedAt: time.Now()},
		}}

		syncer := NewSyncer(src, ingest, docs)
		require.NoError(t, syncer.SyncOnce(ctx))

		assert.Empty(t, ingest.removedURIs())
	})

	t.Run("leaves documents from other sources alone", func(t *testing.T) {
		src := &mockCorpusSource{}
		ingest := &mockIngestService{}
		docs := &mockDocumentService{infos: []domain.DocumentInfo{
			{URI: "upload://brief.pdf", SourceType: "upload", UpdatedAt: time.Now()},
		}}

		syncer := NewSyncer(src, ingest, docs)
		require.NoError(t, syncer.SyncOnce(ctx))

		assert.Empty(t, ingest.removedURIs())
	})

	t.Run("continues past ingest failures", func(t *testing.T) {
		src := &mockCorpusSource{docs: []domain.RawDocument{
			rawDoc("file:///corpus/a.txt", time.Now()),
		}}
		ingest := &mockIngestService{ingestErr: errors.New("embedder offline")}
		docs := &mockDocumentService{}

		syncer := NewSyncer(src, ingest, docs)

		assert.NoError(t, syncer.SyncOnce(ctx))
		assert.Empty(t, ingest.ingestedURIs())
	})

	t.Run("surfaces a document listing failure", func(t *testing.T) {
		src := &mockCorpusSource{}
		ingest := &mockIngestService{}
		docs := &mockDocumentService{listErr: errors.New("db locked")}

		syncer := NewSyncer(src, ingest, docs)

		err := syncer.SyncOnce(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing documents")
	})
}

func TestSyncer_Run(t *testing.T) {
	t.Run("applies watcher events", func(t *testing.T) {
		changes := make(chan domain.CorpusChange)
		src := &mockCorpusSource{changes: changes}
		ingest := &mockIngestService{}
		docs := &mockDocumentService{}

		syncer := NewSyncer(src, ingest, docs, WithRescanInterval(0))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errCh := make(chan error, 1)
		go func() { errCh <- syncer.Run(ctx) }()

		changes <- domain.CorpusChange{
			Type:     domain.ChangeCreated,
			Document: rawDoc("file:///corpus/new.txt", time.Now()),
		}
		require.Eventually(t, func() bool {
			return len(ingest.ingestedURIs()) == 1
		}, 2*time.Second, 10*time.Millisecond)

		changes <- domain.CorpusChange{
			Type:     domain.ChangeDeleted,
			Document: domain.RawDocument{URI: "file:///corpus/new.txt", SourceType: "filesystem"},
		}
		require.Eventually(t, func() bool {
			return len(ingest.removedURIs()) == 1
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for Run to return")
		}
	})

	t.Run("rescans on the configured interval", func(t *testing.T) {
		// No modification time, so every pass counts as changed.
		src := &mockCorpusSource{docs: []domain.RawDocument{
			{URI: "file:///corpus/a.txt", SourceType: "filesystem", Content: []byte("x")},
		}}
		ingest := &mockIngestService{}
		docs := &mockDocumentService{}

		syncer := NewSyncer(src, ingest, docs, WithRescanInterval(20*time.Millisecond))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errCh := make(chan error, 1)
		go func() { errCh <- syncer.Run(ctx) }()

		require.Eventually(t, func() bool {
			return len(ingest.ingestedURIs()) >= 2
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		<-errCh
	})

	t.Run("returns when the source closes its channel", func(t *testing.T) {
		changes := make(chan domain.CorpusChange)
		src := &mockCorpusSource{changes: changes}
		syncer := NewSyncer(src, &mockIngestService{}, &mockDocumentService{}, WithRescanInterval(0))

		errCh := make(chan error, 1)
		go func() { errCh <- syncer.Run(context.Background()) }()

		close(changes)

		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for Run to return")
		}
	})

	t.Run("surfaces a watch failure", func(t *testing.T) {
		src := &mockCorpusSource{watchErr: errors.New("too many open files")}
		syncer := NewSyncer(src, &mockIngestService{}, &mockDocumentService{})

		err := syncer.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "watching corpus")
	})
}

func TestModifiedAt(t *testing.T) {
	now := time.Now()

	mod, ok := modifiedAt(&domain.RawDocument{Metadata: map[string]any{"modified_at": now}})
	require.True(t, ok)
	assert.Equal(t, now, mod)

	_, ok = modifiedAt(&domain.RawDocument{Metadata: map[string]any{"modified_at": "yesterday"}})
	assert.False(t, ok)

	_, ok = modifiedAt(&domain.RawDocument{})
	assert.False(t, ok)
}
