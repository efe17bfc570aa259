// Command lexquery answers natural-language questions from a local
// document corpus. It wires the storage, index, AI and service layers
// together and hands control to the command tree.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/veritas-labs/lexquery/internal/adapters/driven/ai"
	"github.com/veritas-labs/lexquery/internal/adapters/driven/config/file"
	"github.com/veritas-labs/lexquery/internal/adapters/driven/index/flat"
	"github.com/veritas-labs/lexquery/internal/adapters/driven/index/ivf"
	"github.com/veritas-labs/lexquery/internal/adapters/driven/storage/sqlite"
	"github.com/veritas-labs/lexquery/internal/adapters/driving/cli"
	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/core/services"
	"github.com/veritas-labs/lexquery/internal/logger"
	"github.com/veritas-labs/lexquery/internal/metrics"
	"github.com/veritas-labs/lexquery/internal/normalisers"
	"github.com/veritas-labs/lexquery/internal/postprocessors"
	"github.com/veritas-labs/lexquery/internal/tokeniser"
)

// version is set at build time via -ldflags "-X main.version=v1.2.3".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lexquery: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Settings first: everything downstream is built from them.
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	// Durable storage for documents, chunks and embeddings.
	store, err := sqlite.NewStore(settings.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening corpus database: %w", err)
	}
	defer store.Close()

	docStore := store.DocumentStore()
	metaStore := store.MetaStore()

	// In-memory vector index, rebuilt from stored chunks. A failed
	// hydration (typically a dimension change after switching
	// embedding models) leaves the index empty rather than aborting:
	// settings and ingestion commands must still work.
	index, err := buildIndex(settings.Index)
	if err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}
	defer index.Close()

	if _, err := services.HydrateIndex(context.Background(), docStore, index); err != nil {
		logger.Warn("Index hydration incomplete, search results may be missing: %v", err)
	}

	// AI backends. Both are optional: a missing embedder disables
	// ingestion and retrieval, a missing LLM drops answers to
	// extractive mode. Either way the process starts.
	aiResult := ai.Initialise(*settings)
	defer aiResult.Close()
	for _, warning := range aiResult.Warnings {
		logger.Warn("%s", warning)
	}

	// Query pipeline.
	retrieval := services.NewRetrievalService(docStore, index, aiResult.EmbeddingService, settings.Retrieval)
	assembler := services.NewContextAssembler(tokeniser.NewTiktoken(), settings.Context)
	answer := services.NewAnswerService(retrieval, assembler, aiResult.LLMService, services.AnswerConfig{
		MaxTokens:    settings.LLM.MaxTokens,
		Temperature:  settings.LLM.Temperature,
		MaxRetries:   settings.LLM.MaxRetries,
		HistoryTurns: settings.Context.HistoryTurns,
		DefaultK:     settings.Retrieval.K,
		Confidence:   settings.Confidence,
	})

	if prompts, err := file.NewPromptStore(""); err == nil {
		answer.SetPromptStore(prompts)
	} else {
		logger.Warn("Prompt store unavailable, using built-in prompts: %v", err)
	}

	// Ingestion pipeline.
	registry := normalisers.NewDefaultRegistry()

	ppRegistry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(ppRegistry)
	pipeline, err := ppRegistry.BuildPipeline(postprocessors.DefaultSpecs(settings.Chunking))
	if err != nil {
		return fmt.Errorf("building post-processing pipeline: %w", err)
	}

	ingest := services.NewIngestService(docStore, metaStore, registry, pipeline, aiResult.EmbeddingService, index)
	document := services.NewDocumentService(docStore, index)
	health := services.NewHealthService(docStore, index, aiResult.EmbeddingService, aiResult.LLMService)

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Ask:       answer,
		Retrieval: retrieval,
		Ingest:    ingest,
		Document:  document,
		Settings:  settingsService,
		Health:    health,
		Collector: metrics.NewCollector(),
	})
	cli.SetTUIConfig(&cli.TUIConfig{
		AskService:      answer,
		IngestService:   ingest,
		DocumentService: document,
		SettingsService: settingsService,
		HealthService:   health,
	})

	return cli.Execute()
}

// buildIndex creates the vector index named by settings. Missing
// dimensions fall back to the default, unknown kinds to the flat
// index.
func buildIndex(cfg domain.IndexSettings) (driven.VectorIndex, error) {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = domain.DefaultAppSettings().Index.Dimensions
	}

	if cfg.Kind == domain.IndexKindIVF {
		var opts []ivf.Option
		if cfg.Partitions > 0 {
			opts = append(opts, ivf.WithPartitions(cfg.Partitions))
		}
		if cfg.Probes > 0 {
			opts = append(opts, ivf.WithProbes(cfg.Probes))
		}
		return ivf.New(dims, opts...)
	}

	var opts []flat.Option
	if cfg.SegmentSize > 0 {
		opts = append(opts, flat.WithSegmentSize(cfg.SegmentSize))
	}
	return flat.New(dims, opts...)
}
