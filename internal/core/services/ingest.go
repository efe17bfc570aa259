package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
	"github.com/veritas-labs/lexquery/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// embedWorkers bounds how many embedding calls run concurrently for
// one document. The gateway behind the embedder still applies its own
// batch size and rate limit per call.
const embedWorkers = 4

// embedSpan is how many chunks one worker embeds per call.
const embedSpan = 32

// IngestService runs the ingestion pipeline: normalise, chunk, embed,
// store, index. Atomic per document: a failure past the first write
// rolls back everything already stored before the error surfaces.
type IngestService struct {
	docStore  driven.DocumentStore
	metaStore driven.MetaStore
	registry  driven.NormaliserRegistry
	pipeline  driven.PostProcessorPipeline
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
}

// NewIngestService creates an ingest service. The metaStore may be
// nil; the embedding-model consistency guard is then skipped.
func NewIngestService(
	docStore driven.DocumentStore,
	metaStore driven.MetaStore,
	registry driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
) *IngestService {
	return &IngestService{
		docStore:  docStore,
		metaStore: metaStore,
		registry:  registry,
		pipeline:  pipeline,
		embedder:  embedder,
		index:     index,
	}
}

// Ingest brings one raw document into the corpus. Re-ingesting a URI
// that already exists replaces the previous version.
func (s *IngestService) Ingest(ctx context.Context, raw *domain.RawDocument) (*driving.IngestResult, error) {
	logger.Section("Ingest")
	if raw == nil || len(raw.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrInvalidInput)
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrEmbeddingUnavailable)
	}
	logger.Debug("Ingest: %s (%s, %d bytes)", raw.URI, raw.MIMEType, len(raw.Content))

	if err := s.checkModelConsistency(ctx); err != nil {
		return nil, err
	}

	// A URI already in the corpus gets its old version removed first,
	// so the corpus never holds two vintages of the same document.
	replaced, err := s.removeExisting(ctx, raw.URI)
	if err != nil {
		return nil, err
	}

	// 1. NORMALISE
	result, err := s.registry.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("normalise %s: %w", raw.URI, err)
	}
	doc := result.Document
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	// 2. CHUNK
	chunks, err := s.pipeline.Process(ctx, &doc)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", raw.URI, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %q produced no chunks", domain.ErrChunking, doc.ID)
	}
	logger.Debug("Ingest: %d chunks", len(chunks))

	// 3. EMBED (nothing stored yet; a failure here aborts cleanly)
	if err := s.embedChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("embed %s: %w", raw.URI, err)
	}

	// 4. STORE
	if err := s.docStore.SaveDocument(ctx, &doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		s.rollback(ctx, doc.ID)
		return nil, fmt.Errorf("save chunks: %w", err)
	}

	// 5. INDEX
	if err := s.index.Upsert(ctx, indexEntries(&doc, chunks)); err != nil {
		s.rollback(ctx, doc.ID)
		return nil, fmt.Errorf("index document: %w", err)
	}

	s.recordModel(ctx)

	logger.Info("Ingested %s: %d chunks (replaced=%t)", doc.ID, len(chunks), replaced)
	return &driving.IngestResult{
		DocumentID: doc.ID,
		Title:      doc.Title,
		ChunkCount: len(chunks),
		Replaced:   replaced,
	}, nil
}

// Remove deletes a document, its chunks, and its index entries.
// The index goes first so searches stop surfacing the document even
// if the store deletion fails.
func (s *IngestService) Remove(ctx context.Context, documentID string) error {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.index.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete index entries: %w", err)
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	logger.Info("Removed document %s", documentID)
	return nil
}

// RemoveByURI deletes the document ingested from the given URI. A URI
// that was never ingested is not an error; the corpus watcher calls
// this for every disappearing file.
func (s *IngestService) RemoveByURI(ctx context.Context, uri string) error {
	doc, err := s.docStore.GetDocumentByURI(ctx, uri)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find document by uri: %w", err)
	}
	return s.Remove(ctx, doc.ID)
}

// removeExisting deletes any previous version of the URI and reports
// whether one existed.
func (s *IngestService) removeExisting(ctx context.Context, uri string) (bool, error) {
	old, err := s.docStore.GetDocumentByURI(ctx, uri)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find document by uri: %w", err)
	}

	logger.Debug("Ingest: replacing previous version %s of %s", old.ID, uri)
	if err := s.Remove(ctx, old.ID); err != nil {
		return false, fmt.Errorf("remove previous version: %w", err)
	}
	return true, nil
}

// embedChunks fills in the embedding of every chunk, spans embedded
// concurrently. Either every chunk gets its vector or the whole step
// fails.
func (s *IngestService) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)

	for start := 0; start < len(chunks); start += embedSpan {
		end := start + embedSpan
		if end > len(chunks) {
			end = len(chunks)
		}
		span := chunks[start:end]

		g.Go(func() error {
			texts := make([]string, len(span))
			for i := 0; i < len(span); i++ {
				texts[i] = span[i].Content
			}

			vectors, err := s.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return err
			}
			for i := 0; i < len(span); i++ {
				span[i].Embedding = vectors[i]
			}
			return nil
		})
	}

	return g.Wait()
}

// checkModelConsistency rejects ingestion under an embedding model
// whose dimension differs from what the corpus was embedded at.
// Mixing dimensions would corrupt every similarity comparison.
func (s *IngestService) checkModelConsistency(ctx context.Context) error {
	if s.metaStore == nil {
		return nil
	}

	stored, err := s.metaStore.GetMeta(ctx, driven.MetaIndexDimensions)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil // fresh corpus, first ingest records it
		}
		return fmt.Errorf("read index dimensions: %w", err)
	}

	dims, err := strconv.Atoi(stored)
	if err != nil || dims <= 0 {
		logger.Warn("Ingest: unreadable stored index dimensions %q, skipping guard", stored)
		return nil
	}

	if got := s.embedder.Dimensions(); got != dims {
		return fmt.Errorf("%w: corpus is embedded at %d dimensions, model %q produces %d; "+
			"re-ingest the corpus to switch models",
			domain.ErrDimensionMismatch, dims, s.embedder.ModelName(), got)
	}
	return nil
}

// recordModel persists the embedding dimension, metric and model of
// the corpus after a successful ingest. Failures are logged, not
// fatal; the next ingest records again.
func (s *IngestService) recordModel(ctx context.Context) {
	if s.metaStore == nil {
		return
	}
	dims := strconv.Itoa(s.embedder.Dimensions())
	if err := s.metaStore.SetMeta(ctx, driven.MetaIndexDimensions, dims); err != nil {
		logger.Warn("Ingest: record index dimensions: %v", err)
	}
	if err := s.metaStore.SetMeta(ctx, driven.MetaIndexMetric, "cosine"); err != nil {
		logger.Warn("Ingest: record index metric: %v", err)
	}
	if err := s.metaStore.SetMeta(ctx, driven.MetaEmbeddingModel, s.embedder.ModelName()); err != nil {
		logger.Warn("Ingest: record embedding model: %v", err)
	}
}

// rollback removes every trace of a partially ingested document.
func (s *IngestService) rollback(ctx context.Context, documentID string) {
	logger.Warn("Ingest: rolling back document %s", documentID)
	if err := s.index.Delete(ctx, documentID); err != nil {
		logger.Error("Rollback: delete index entries for %s: %v", documentID, err)
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Error("Rollback: delete document %s: %v", documentID, err)
	}
}

// indexEntries builds the vector index records for a document's
// chunks. The metadata snapshot carries what retrieval filters and
// citations need.
func indexEntries(doc *domain.Document, chunks []domain.Chunk) []driven.IndexEntry {
	entries := make([]driven.IndexEntry, len(chunks))
	for i := 0; i < len(chunks); i++ {
		metadata := map[string]string{
			"source_type": doc.SourceType,
			"title":       doc.Title,
		}
		if chunks[i].Section != "" {
			metadata["section"] = chunks[i].Section
		}
		entries[i] = driven.IndexEntry{
			ChunkID:    chunks[i].ID,
			DocumentID: doc.ID,
			Vector:     chunks[i].Embedding,
			Metadata:   metadata,
		}
	}
	return entries
}
