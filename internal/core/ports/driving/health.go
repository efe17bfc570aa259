package driving

import (
	"context"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

// HealthService probes the serving fitness of the system.
type HealthService interface {
	// Check probes the store, the vector index, and the AI backends
	// and aggregates the outcome. A generation outage degrades rather
	// than fails: retrieval-only answers remain possible.
	Check(ctx context.Context) *domain.Health
}
