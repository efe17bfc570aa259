// Package mcp provides an MCP (Model Context Protocol) server adapter
// for LexQuery. It lets AI assistants question the indexed corpus and
// browse its documents as resources.
package mcp

import "errors"

var (
	// ErrMissingAskService is returned when the ask service is not provided.
	ErrMissingAskService = errors.New("mcp: ask service is required")

	// ErrMissingRetrievalService is returned when the search tool is
	// invoked without a retrieval service.
	ErrMissingRetrievalService = errors.New("mcp: retrieval service is not configured")
)
