// Package domain defines the core business entities for LexQuery.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: an ingested legal document with metadata
//   - Chunk: a bounded text span of a document, the unit of retrieval
//   - RawDocument: opaque bytes before normalisation
//   - RetrievedPassage: a chunk scored against a query
//   - Answer: a synthesized answer with confidence and citations
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
