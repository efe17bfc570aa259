package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown document or normaliser type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrChunking indicates an ingestion request whose text cannot be
	// chunked: empty input, or a chunk size that does not exceed the
	// overlap (the splitter would never advance). The request is
	// rejected; nothing is stored.
	ErrChunking = errors.New("chunking failed")

	// ErrDimensionMismatch indicates a vector whose dimension differs
	// from the index's fixed dimension. The upsert is rejected outright
	// and never retried; accepting it would corrupt the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingUnavailable indicates the embedding backend stayed
	// unreachable after local retries. Fatal for the request that
	// needed it, not for the process.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationUnavailable indicates the generation backend stayed
	// unreachable after local retries. Callers surface a degraded
	// answer rather than a server fault.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrNoResults indicates retrieval found nothing: the index is
	// empty or no entry cleared the similarity threshold. This is a
	// recognised state driving fallback behaviour, not a fault.
	ErrNoResults = errors.New("no results found")

	// ErrIndexClosed indicates an operation on a closed vector index.
	ErrIndexClosed = errors.New("vector index closed")

	// ErrRateLimited indicates an upstream API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates an external call exceeded its deadline.
	ErrTimeout = errors.New("request timed out")
)

// IsTransient reports whether err is a failure class worth retrying:
// timeouts and rate limits. Data-integrity and validation failures
// are never transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}

// IsDegradable reports whether err should degrade to an apology
// answer at the chat boundary instead of propagating a server fault.
func IsDegradable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrGenerationUnavailable) ||
		errors.Is(err, ErrNoResults)
}
