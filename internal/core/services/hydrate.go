package services

import (
	"context"
	"fmt"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/logger"
)

// hydrateBatchSize bounds how many entries a single Upsert carries
// while rebuilding the index from storage.
const hydrateBatchSize = 256

// HydrateIndex rebuilds a vector index from the chunks held in the
// document store. It runs once at startup, before the index serves
// queries. Chunks without embeddings are skipped, so a corpus
// ingested while the embedder was down simply stays unsearchable
// until re-ingested.
//
// Returns the number of entries restored. On error, entries upserted
// before the failure remain in the index.
func HydrateIndex(ctx context.Context, store driven.DocumentStore, index driven.VectorIndex) (int, error) {
	if store == nil || index == nil {
		return 0, nil
	}

	var (
		batch    []driven.IndexEntry
		restored int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := index.Upsert(ctx, batch); err != nil {
			return err
		}
		restored += len(batch)
		batch = nil
		return nil
	}

	walkErr := store.WalkChunks(ctx, func(doc *domain.Document, chunk *domain.Chunk) error {
		if len(chunk.Embedding) == 0 {
			return nil
		}
		batch = append(batch, indexEntries(doc, []domain.Chunk{*chunk})[0])
		if len(batch) >= hydrateBatchSize {
			return flush()
		}
		return nil
	})
	if walkErr != nil {
		return restored, fmt.Errorf("hydrating index: %w", walkErr)
	}
	if err := flush(); err != nil {
		return restored, fmt.Errorf("hydrating index: %w", err)
	}

	if restored > 0 {
		logger.Debug("Hydrated vector index with %d entries", restored)
	}
	return restored, nil
}
