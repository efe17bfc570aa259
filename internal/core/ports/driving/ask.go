package driving

import (
	"context"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

// AskService answers natural-language questions against the corpus.
type AskService interface {
	// Ask runs the full pipeline: embed the question, retrieve and
	// deduplicate passages, assemble a bounded context, and synthesize
	// an answer with confidence and citations.
	//
	// Dependency outages and empty retrievals surface as a degraded
	// Answer (Degraded true, Confidence 0, empty Sources for outages),
	// not as an error; an error return means the request itself was
	// invalid.
	Ask(ctx context.Context, question string, opts domain.AskOptions) (*domain.Answer, error)
}

// RetrievalService exposes the retrieval stage on its own, for
// callers that want ranked passages without synthesis (search tools,
// debugging).
type RetrievalService interface {
	// Retrieve embeds the query and returns ranked, deduplicated
	// passages. Returns ErrNoResults when the index is empty or
	// nothing clears the similarity threshold.
	Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) ([]domain.RetrievedPassage, error)
}
