package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
	K        int    `json:"k,omitempty" jsonschema:"number of passages to retrieve (default from settings)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer     string         `json:"answer"`
	Confidence float64        `json:"confidence"`
	Sources    []SourceOutput `json:"sources"`
	Degraded   bool           `json:"degraded,omitempty"`
	Model      string         `json:"model,omitempty"`
}

// SourceOutput is one cited document in an ask result.
type SourceOutput struct {
	DocumentID string   `json:"document_id"`
	Title      string   `json:"title"`
	Sections   []string `json:"sections,omitempty"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the query to match against indexed passages"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of passages to return (default 10)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single retrieved passage.
type SearchResultOutput struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	URI        string  `json:"uri"`
	Similarity float64 `json:"similarity"`
	Section    string  `json:"section,omitempty"`
	Content    string  `json:"content,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed documents, with confidence and citations",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Retrieve the passages most similar to a query, without answer synthesis",
	}, s.handleSearch)
}

// handleAsk handles the ask tool invocation. Outages come back as a
// degraded answer, so a tool error here means the request was invalid.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	opts := domain.AskOptions{}
	if input.K > 0 {
		opts.Retrieve.K = input.K
	}

	answer, err := s.ports.Ask.Ask(ctx, input.Question, opts)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:     answer.Text,
		Confidence: answer.Confidence,
		Sources:    make([]SourceOutput, len(answer.Sources)),
		Degraded:   answer.Degraded,
		Model:      answer.Model,
	}
	for i := range answer.Sources {
		output.Sources[i] = SourceOutput{
			DocumentID: answer.Sources[i].DocumentID,
			Title:      answer.Sources[i].Title,
			Sections:   answer.Sources[i].Sections,
		}
	}

	return nil, output, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	if s.ports.Retrieval == nil {
		return nil, SearchOutput{}, ErrMissingRetrievalService
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := domain.RetrieveOptions{K: limit}
	passages, err := s.ports.Retrieval.Retrieve(ctx, input.Query, opts)
	if err != nil {
		// An empty corpus is an empty result set, not a tool failure.
		if errors.Is(err, domain.ErrNoResults) {
			return nil, SearchOutput{Results: []SearchResultOutput{}}, nil
		}
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(passages)),
		Count:   len(passages),
	}
	for i := range passages {
		output.Results[i] = SearchResultOutput{
			DocumentID: passages[i].Document.ID,
			Title:      passages[i].Document.Title,
			URI:        passages[i].Document.URI,
			Similarity: passages[i].Similarity,
			Section:    passages[i].Chunk.Section,
			Content:    passages[i].Chunk.Content,
		}
	}

	return nil, output, nil
}
