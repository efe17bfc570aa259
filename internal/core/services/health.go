package services

import (
	"context"
	"time"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
	"github.com/veritas-labs/lexquery/internal/logger"
)

// Ensure HealthService implements the interface.
var _ driving.HealthService = (*HealthService)(nil)

// probeTimeout bounds each dependency probe.
const probeTimeout = 5 * time.Second

// HealthService probes the serving fitness of the system. The store,
// the index and the embedder are required: losing one of them stops
// answers, so their failures report as errors. A generation outage
// only degrades; retrieval-only answers remain possible.
type HealthService struct {
	store    driven.DocumentStore
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	llm      driven.LLMService
}

// NewHealthService creates a health service. The embedder and llm may
// be nil; their components then report as degraded.
func NewHealthService(
	store driven.DocumentStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
) *HealthService {
	return &HealthService{
		store:    store,
		index:    index,
		embedder: embedder,
		llm:      llm,
	}
}

// Check probes every dependency and aggregates the outcome.
func (s *HealthService) Check(ctx context.Context) *domain.Health {
	components := []domain.ComponentHealth{
		s.probeStore(ctx),
		s.probeIndex(ctx),
		s.probeEmbedding(ctx),
		s.probeLLM(ctx),
	}

	status := domain.HealthOK
	for _, c := range components {
		switch c.Status {
		case domain.HealthError:
			status = domain.HealthError
		case domain.HealthDegraded:
			if status == domain.HealthOK {
				status = domain.HealthDegraded
			}
		}
	}

	if status != domain.HealthOK {
		logger.Warn("Health check: %s", status)
	}

	return &domain.Health{
		Status:     status,
		Components: components,
		CheckedAt:  time.Now(),
	}
}

func (s *HealthService) probeStore(ctx context.Context) domain.ComponentHealth {
	c := domain.ComponentHealth{Name: "store", Status: domain.HealthOK}
	if s.store == nil {
		c.Status = domain.HealthError
		c.Error = "document store not configured"
		return c
	}
	if err := s.ping(ctx, s.store.Ping); err != nil {
		c.Status = domain.HealthError
		c.Error = err.Error()
	}
	return c
}

func (s *HealthService) probeIndex(ctx context.Context) domain.ComponentHealth {
	c := domain.ComponentHealth{Name: "index", Status: domain.HealthOK}
	if s.index == nil {
		c.Status = domain.HealthError
		c.Error = "vector index not configured"
		return c
	}
	if err := s.ping(ctx, s.index.Ping); err != nil {
		c.Status = domain.HealthError
		c.Error = err.Error()
	}
	return c
}

func (s *HealthService) probeEmbedding(ctx context.Context) domain.ComponentHealth {
	c := domain.ComponentHealth{Name: "embedding", Status: domain.HealthOK}
	if s.embedder == nil {
		c.Status = domain.HealthDegraded
		c.Error = "no embedding provider configured"
		return c
	}
	if err := s.ping(ctx, s.embedder.Ping); err != nil {
		c.Status = domain.HealthError
		c.Error = err.Error()
	}
	return c
}

func (s *HealthService) probeLLM(ctx context.Context) domain.ComponentHealth {
	c := domain.ComponentHealth{Name: "llm", Status: domain.HealthOK}
	if s.llm == nil {
		c.Status = domain.HealthDegraded
		c.Error = "no generation provider configured"
		return c
	}
	if err := s.ping(ctx, s.llm.Ping); err != nil {
		c.Status = domain.HealthDegraded
		c.Error = err.Error()
	}
	return c
}

// ping runs one probe under the probe timeout.
func (s *HealthService) ping(ctx context.Context, probe func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return probe(ctx)
}
