package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer with citations", func(t *testing.T) {
		mockAsk := &mockAskService{
			answer: &domain.Answer{
				Text:       "Either party may terminate on 30 days notice.",
				Confidence: 0.82,
				Sources: []domain.SourceRef{{
					DocumentID: "doc-msa",
					Title:      "Master Services Agreement",
					Sections:   []string{"Section 8.1 Termination"},
				}},
				Model: "llama3.2",
			},
		}

		ports := &Ports{Ask: mockAsk}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := AskInput{Question: "How does the MSA terminate?", K: 3}
		_, output, err := server.handleAsk(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, "Either party may terminate on 30 days notice.", output.Answer)
		assert.InDelta(t, 0.82, output.Confidence, 1e-9)
		assert.False(t, output.Degraded)
		assert.Equal(t, "llama3.2", output.Model)
		require.Len(t, output.Sources, 1)
		assert.Equal(t, "doc-msa", output.Sources[0].DocumentID)
		assert.Equal(t, []string{"Section 8.1 Termination"}, output.Sources[0].Sections)
		assert.Equal(t, 3, mockAsk.lastOpts.Retrieve.K)
	})

	t.Run("degraded answer is not a tool error", func(t *testing.T) {
		mockAsk := &mockAskService{
			answer: &domain.Answer{
				Text:     "I cannot answer right now because a required backend is unreachable.",
				Sources:  []domain.SourceRef{},
				Degraded: true,
			},
		}

		ports := &Ports{Ask: mockAsk}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "anything"})

		require.NoError(t, err)
		assert.True(t, output.Degraded)
		assert.Zero(t, output.Confidence)
		assert.Empty(t, output.Sources)
	})

	t.Run("zero k leaves the default in place", func(t *testing.T) {
		mockAsk := &mockAskService{answer: &domain.Answer{}}
		ports := &Ports{Ask: mockAsk}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Question: "anything"})

		require.NoError(t, err)
		assert.Zero(t, mockAsk.lastOpts.Retrieve.K)
	})

	t.Run("returns error on invalid question", func(t *testing.T) {
		mockAsk := &mockAskService{
			err: fmt.Errorf("question is empty: %w", domain.ErrInvalidInput),
		}

		ports := &Ports{Ask: mockAsk}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Question: ""})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns retrieved passages", func(t *testing.T) {
		mockRetrieval := &mockRetrievalService{
			passages: []domain.RetrievedPassage{
				{
					Document: domain.Document{
						ID:    "doc-1",
						Title: "Master Services Agreement",
						URI:   "file:///corpus/msa.pdf",
					},
					Chunk: domain.Chunk{
						Content: "Either party may terminate.",
						Section: "Section 8.1 Termination",
					},
					Similarity: 0.95,
				},
			},
		}

		ports := &Ports{Ask: &mockAskService{}, Retrieval: mockRetrieval}
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := SearchInput{Query: "termination", Limit: 5}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "doc-1", output.Results[0].DocumentID)
		assert.Equal(t, "Master Services Agreement", output.Results[0].Title)
		assert.Equal(t, "file:///corpus/msa.pdf", output.Results[0].URI)
		assert.Equal(t, 0.95, output.Results[0].Similarity)
		assert.Equal(t, "Section 8.1 Termination", output.Results[0].Section)
		assert.Equal(t, "Either party may terminate.", output.Results[0].Content)
		assert.Equal(t, 5, mockRetrieval.lastOpts.K)
	})

	t.Run("default limit is 10", func(t *testing.T) {
		mockRetrieval := &mockRetrievalService{}
		ports := &Ports{Ask: &mockAskService{}, Retrieval: mockRetrieval}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "anything"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Equal(t, 10, mockRetrieval.lastOpts.K)
	})

	t.Run("empty corpus returns empty results", func(t *testing.T) {
		mockRetrieval := &mockRetrievalService{
			err: fmt.Errorf("index is empty: %w", domain.ErrNoResults),
		}

		ports := &Ports{Ask: &mockAskService{}, Retrieval: mockRetrieval}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "anything"})

		require.NoError(t, err)
		assert.Zero(t, output.Count)
		assert.NotNil(t, output.Results)
		assert.Empty(t, output.Results)
	})

	t.Run("nil retrieval service returns error", func(t *testing.T) {
		ports := &Ports{Ask: &mockAskService{}}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "anything"})

		assert.ErrorIs(t, err, ErrMissingRetrievalService)
	})

	t.Run("returns error on retrieval failure", func(t *testing.T) {
		mockRetrieval := &mockRetrievalService{
			err: errors.New("vector search: disk corrupt"),
		}

		ports := &Ports{Ask: &mockAskService{}, Retrieval: mockRetrieval}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "anything"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk corrupt")
	})
}
