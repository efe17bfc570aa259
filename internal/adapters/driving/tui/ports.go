// Package tui provides an interactive terminal user interface for lexquery.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ask answers questions against the corpus.
	Ask driving.AskService

	// Ingest brings new documents into the corpus.
	Ingest driving.IngestService

	// Document manages ingested documents.
	Document driving.DocumentService

	// Settings manages application settings.
	Settings driving.SettingsService

	// Health reports component health.
	Health driving.HealthService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(
	ask driving.AskService,
	ingest driving.IngestService,
	document driving.DocumentService,
) *Ports {
	return &Ports{
		Ask:      ask,
		Ingest:   ingest,
		Document: document,
	}
}

// Validate ensures all required ports are set.
// Returns an error if any port is nil. Settings, Health and Ingest are
// optional: the views that need them degrade when they are absent.
func (p *Ports) Validate() error {
	if p.Ask == nil {
		return ErrMissingAskService
	}
	if p.Document == nil {
		return ErrMissingDocumentService
	}
	return nil
}
