// Package index provides the pure Go vector index implementations and the
// scoring primitives they share.
//
// Two implementations satisfy the VectorIndex port: flat (exact scan over
// fixed-size segments) and ivf (partitioned scan that trades a little recall
// for speed on large corpora). Both use cosine similarity over vectors
// normalised at insert, fix their dimension at construction, and break score
// ties by insertion order so results are stable across runs.
package index
