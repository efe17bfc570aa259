// Package embedding wraps a concrete embedding backend with the
// call discipline the rest of the system relies on: bounded batch
// sizes, retry with exponential backoff, and rate limiting. Provider
// packages underneath stay thin HTTP bindings.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/logger"
	"github.com/veritas-labs/lexquery/internal/retry"
)

// Default gateway settings.
const (
	DefaultBatchSize  = 16
	DefaultMaxRetries = 3
)

// GatewayConfig holds the settings for the embedding gateway.
type GatewayConfig struct {
	// BatchSize bounds how many texts go to the backend per request.
	BatchSize int

	// MaxRetries caps retry attempts after a transient failure.
	MaxRetries int

	// RequestsPerSecond throttles calls to the backend. Zero disables
	// the limiter.
	RequestsPerSecond float64
}

// Gateway wraps an embedding backend. Callers see either a complete
// result in input order or ErrEmbeddingUnavailable, never a partial
// batch.
type Gateway struct {
	backend driven.EmbeddingService
	policy  retry.Policy
	batch   int
	limiter *rate.Limiter
}

var _ driven.EmbeddingService = (*Gateway)(nil)

// NewGateway wraps the given backend with retries, batching, and
// optional rate limiting.
func NewGateway(backend driven.EmbeddingService, cfg GatewayConfig) *Gateway {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	policy.RetryIf = retryable

	return &Gateway{
		backend: backend,
		policy:  policy,
		batch:   cfg.BatchSize,
		limiter: limiter,
	}
}

// retryable reports whether a backend failure is worth retrying.
// Dimension mismatches and caller cancellation never resolve on their
// own. Deadline errors stay retryable: a per-request timeout from the
// HTTP client wraps context.DeadlineExceeded, and a slow backend is
// the main thing retries exist for.
func retryable(err error) bool {
	if errors.Is(err, domain.ErrDimensionMismatch) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// Embed generates an embedding vector for a single text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for the given texts, in input
// order. Oversized inputs are split into backend-sized requests, each
// retried independently. A sub-batch that stays down after retries
// fails the whole call with ErrEmbeddingUnavailable.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += g.batch {
		end := start + g.batch
		if end > len(texts) {
			end = len(texts)
		}
		sub := texts[start:end]

		vecs, err := g.embedSub(ctx, sub)
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}

	return results, nil
}

// embedSub sends one backend-sized request, retrying per policy.
func (g *Gateway) embedSub(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := retry.DoValue(ctx, g.policy, func() ([][]float32, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		vecs, err := g.backend.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("backend returned %d embeddings for %d inputs", len(vecs), len(texts))
		}
		return vecs, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		logger.Warn("embedding backend exhausted retries: %v", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return vecs, nil
}

// Dimensions returns the backend's embedding dimension.
func (g *Gateway) Dimensions() int {
	return g.backend.Dimensions()
}

// ModelName returns the backend's model name.
func (g *Gateway) ModelName() string {
	return g.backend.ModelName()
}

// Ping checks that the backend is reachable. Pings are not retried;
// health checks want the current state, not the eventual one.
func (g *Gateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return g.backend.Ping(ctx)
}

// Close releases the backend's resources.
func (g *Gateway) Close() error {
	return g.backend.Close()
}
