package domain

import "time"

// HealthStatus summarises the serving fitness of the system or one
// of its dependencies.
type HealthStatus string

// Health states.
const (
	// HealthOK means the component answered its probe.
	HealthOK HealthStatus = "healthy"

	// HealthDegraded means optional capability is missing but the
	// system still answers requests (possibly with degraded answers).
	HealthDegraded HealthStatus = "degraded"

	// HealthError means a required component is down.
	HealthError HealthStatus = "error"
)

// ComponentHealth is the probe outcome for one dependency.
type ComponentHealth struct {
	// Name identifies the dependency ("store", "index", "embedding", "llm").
	Name string

	// Status is the probe outcome.
	Status HealthStatus

	// Error carries the probe failure message when Status is not OK.
	Error string
}

// Health is an aggregate health report.
type Health struct {
	// Status is the worst component status, with generation outages
	// counted as degraded rather than error.
	Status HealthStatus

	// Components lists per-dependency outcomes in probe order.
	Components []ComponentHealth

	// CheckedAt is when the probes ran.
	CheckedAt time.Time
}
