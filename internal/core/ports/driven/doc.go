// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentStore: document and chunk persistence
//   - VectorIndex: vector storage and nearest-neighbour search
//   - EmbeddingService: text to vector conversion
//   - Normaliser / NormaliserRegistry: raw bytes to plain text
//   - PostProcessorPipeline: document text to chunks
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: answer generation. Without it, ask/chat returns a
//     degraded "insufficient information" response built from the
//     retrieved passages alone.
//   - CorpusSource: filesystem ingestion and watching. Without it,
//     only upload ingestion is available.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
