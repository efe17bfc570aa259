package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
	"github.com/veritas-labs/lexquery/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService finds the passages most relevant to a query.
// It embeds the query, over-fetches candidates from the vector index,
// applies the similarity threshold and the per-document cap, and
// hydrates the survivors from the document store.
type RetrievalService struct {
	docStore driven.DocumentStore
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	defaults domain.RetrievalSettings
}

// NewRetrievalService creates a retrieval service. The embedder may be
// nil; Retrieve then reports ErrEmbeddingUnavailable. Zero fields in
// defaults fall back to the application defaults.
func NewRetrievalService(
	docStore driven.DocumentStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	defaults domain.RetrievalSettings,
) *RetrievalService {
	base := domain.DefaultAppSettings().Retrieval
	if defaults.K <= 0 {
		defaults.K = base.K
	}
	if defaults.MaxPerDocument <= 0 {
		defaults.MaxPerDocument = base.MaxPerDocument
	}
	if defaults.OverfetchFactor <= 0 {
		defaults.OverfetchFactor = base.OverfetchFactor
	}
	if defaults.MinSimilarity == 0 {
		defaults.MinSimilarity = base.MinSimilarity
	}

	return &RetrievalService{
		docStore: docStore,
		index:    index,
		embedder: embedder,
		defaults: defaults,
	}
}

// Retrieve returns the top passages for the query, ranked by
// similarity descending. ErrNoResults when the index is empty or
// nothing clears the threshold.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query string, opts domain.RetrieveOptions,
) ([]domain.RetrievedPassage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrEmbeddingUnavailable)
	}
	if s.index == nil {
		return nil, errors.New("vector index unavailable")
	}

	k, maxPerDoc, minSim := s.resolve(opts)
	logger.Debug("Retrieve: query=%q, k=%d, maxPerDoc=%d, minSim=%.2f", query, k, maxPerDoc, minSim)

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("Query embedding failed: %v", err)
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Over-fetch so the threshold and the per-document cap still
	// leave k survivors.
	fetch := k * s.defaults.OverfetchFactor
	hits, err := s.index.Search(ctx, vector, fetch, vectorFilter(opts.Filter))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Retrieve: %d candidates for fetch=%d", len(hits), fetch)

	if len(hits) == 0 {
		return nil, domain.ErrNoResults
	}

	selected := selectHits(hits, k, maxPerDoc, minSim)
	if len(selected) == 0 {
		logger.Debug("Retrieve: no candidate cleared threshold %.2f", minSim)
		return nil, domain.ErrNoResults
	}

	passages, err := s.hydrate(ctx, selected)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, domain.ErrNoResults
	}

	logger.Debug("Retrieve: %d passages", len(passages))
	return passages, nil
}

// resolve merges per-request options with the configured defaults.
func (s *RetrievalService) resolve(opts domain.RetrieveOptions) (k, maxPerDoc int, minSim float64) {
	k = opts.K
	if k <= 0 {
		k = s.defaults.K
	}
	maxPerDoc = opts.MaxPerDocument
	if maxPerDoc <= 0 {
		maxPerDoc = s.defaults.MaxPerDocument
	}
	switch {
	case opts.MinSimilarity < 0:
		minSim = 0 // explicit "no threshold"
	case opts.MinSimilarity == 0:
		minSim = s.defaults.MinSimilarity
	default:
		minSim = opts.MinSimilarity
	}
	return k, maxPerDoc, minSim
}

// selectHits applies the similarity threshold and the per-document cap
// to the ranked candidate list and keeps the first k survivors. Hits
// arrive ranked by the index, so a single pass preserves the order.
func selectHits(hits []driven.VectorHit, k, maxPerDoc int, minSim float64) []driven.VectorHit {
	perDoc := make(map[string]int)
	selected := make([]driven.VectorHit, 0, k)

	for i := 0; i < len(hits) && len(selected) < k; i++ {
		hit := hits[i]
		if hit.Similarity < minSim {
			// Ranked descending: everything after this fails too.
			break
		}
		if perDoc[hit.DocumentID] >= maxPerDoc {
			continue
		}
		perDoc[hit.DocumentID]++
		selected = append(selected, hit)
	}

	return selected
}

// hydrate loads the chunk and parent document behind each hit. Hits
// whose chunk or document vanished between search and load are
// skipped rather than failing the request.
func (s *RetrievalService) hydrate(ctx context.Context, hits []driven.VectorHit) ([]domain.RetrievedPassage, error) {
	passages := make([]domain.RetrievedPassage, 0, len(hits))
	docs := make(map[string]*domain.Document)

	for _, hit := range hits {
		chunk, err := s.docStore.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", hit.ChunkID, err)
		}

		doc, ok := docs[chunk.DocumentID]
		if !ok {
			doc, err = s.docStore.GetDocument(ctx, chunk.DocumentID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("get document %s: %w", chunk.DocumentID, err)
			}
			docs[chunk.DocumentID] = doc
		}

		passages = append(passages, domain.RetrievedPassage{
			Chunk:      *chunk,
			Document:   *doc,
			Similarity: hit.Similarity,
		})
	}

	return passages, nil
}

// vectorFilter converts the domain filter to the index filter.
func vectorFilter(f *domain.PassageFilter) *driven.VectorFilter {
	if f == nil {
		return nil
	}
	return &driven.VectorFilter{
		SourceType:  f.SourceType,
		DocumentIDs: f.DocumentIDs,
	}
}
