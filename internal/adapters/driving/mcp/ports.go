package mcp

import (
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ask answers questions against the corpus.
	Ask driving.AskService

	// Retrieval serves the search tool (ranked passages, no synthesis).
	Retrieval driving.RetrievalService

	// Document exposes the corpus as resources.
	Document driving.DocumentService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Ask == nil {
		return ErrMissingAskService
	}
	// Retrieval and Document are optional; their tool and resources
	// report the absence per call.
	return nil
}
