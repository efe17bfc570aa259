package domain

// RetrievedPassage is a chunk scored against a query.
// Ephemeral: produced per query, never persisted.
type RetrievedPassage struct {
	// Chunk is the retrieved span.
	Chunk Chunk

	// Document is the parent document, hydrated for attribution.
	Document Document

	// Similarity is the cosine similarity to the query, in [0,1]
	// for normalised embeddings.
	Similarity float64
}

// PassageFilter restricts retrieval by metadata.
type PassageFilter struct {
	// SourceType limits results to one ingestion channel when set.
	SourceType string

	// DocumentIDs limits results to the given documents when non-empty.
	DocumentIDs []string
}

// RetrieveOptions configures a retrieval request.
type RetrieveOptions struct {
	// K is the desired number of passages. Zero means the configured default.
	K int

	// MaxPerDocument caps chunks from a single document so one
	// document cannot dominate the context. Zero means the default.
	MaxPerDocument int

	// MinSimilarity drops candidates below this score. Negative
	// disables the threshold; zero means the configured default.
	MinSimilarity float64

	// Filter restricts candidates by metadata.
	Filter *PassageFilter
}

// SourceRef is a citation: one distinct source document that
// contributed to an answer's context.
type SourceRef struct {
	// DocumentID identifies the cited document.
	DocumentID string

	// Title is the document title at citation time.
	Title string

	// SourceType is the document's ingestion channel.
	SourceType string

	// Sections lists the headings of the contributing chunks,
	// deduplicated, in contribution order. May be empty.
	Sections []string
}

// AssembledContext is the bounded context handed to generation,
// plus the attribution set it was built from.
type AssembledContext struct {
	// Text is the assembled context, passages in rank order.
	Text string

	// Sources is the ordered set of distinct contributing documents.
	// Chunks from the same document collapse to one entry.
	Sources []SourceRef

	// Similarities are the scores of the passages actually included,
	// in inclusion order. Used for the confidence heuristic.
	Similarities []float64

	// TokensUsed is the token cost of Text under the budget's counter.
	TokensUsed int

	// Truncated reports whether the final passage was cut to fit.
	Truncated bool
}

// ChatTurn is one prior exchange message in a conversation.
type ChatTurn struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// AskOptions configures an answer request.
type AskOptions struct {
	// Retrieve configures the retrieval stage.
	Retrieve RetrieveOptions

	// History holds prior conversation turns, oldest first. The
	// synthesizer bounds it to the configured window.
	History []ChatTurn
}

// Answer is the synthesized result for one question.
// Ephemeral: confidence and sources are derived, never stored.
type Answer struct {
	// Text is the answer.
	Text string

	// Confidence is a normalised [0,1] reliability estimate.
	Confidence float64

	// Sources is exactly the assembler's contributing-document set.
	// Never model-generated.
	Sources []SourceRef

	// Degraded reports that the pipeline fell back (no results, or a
	// backend outage) and Text is an apology or best-effort notice.
	Degraded bool

	// Model names the generation model that produced Text, when known.
	Model string
}
