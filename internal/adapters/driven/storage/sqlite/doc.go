// Package sqlite persists documents, chunks, and corpus metadata in a
// single SQLite database.
//
// The adapter uses modernc.org/sqlite, a pure Go SQLite build that needs
// no CGO, so the binary cross-compiles cleanly. One database connection
// backs two port interfaces:
//
//   - DocumentStore: documents and their chunks, embeddings included
//   - MetaStore: small key-value invariants such as the index dimension
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory, applied in order at startup. Chunk embeddings
// are stored as little-endian float32 blobs.
//
// # Data Location
//
// By default the database lives at ~/.lexquery/data/corpus.db.
//
// # Thread Safety
//
// All operations are safe for concurrent use. SQLite runs in WAL mode so
// readers do not block the writer.
package sqlite
