// Package flat provides an exact-scan vector index.
//
// Entries live in fixed-size segments, each guarded by its own lock, so
// searches scan segments without blocking ingestion into others. Scores are
// exact cosine similarities; this is the default index and the reference
// behaviour the partitioned index approximates.
package flat

import (
	"context"
	"fmt"
	"sync"

	"github.com/veritas-labs/lexquery/internal/adapters/driven/index"
	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// DefaultSegmentSize is the default number of entries per segment.
const DefaultSegmentSize = 4096

// Index is an exact-scan vector index over fixed-size segments.
type Index struct {
	mu       sync.RWMutex
	dims     int
	segSize  int
	segments []*segment
	refs     map[string]ref
	seq      uint64
	live     int
	closed   bool
}

type segment struct {
	mu      sync.RWMutex
	entries []entry
	dead    int
}

type entry struct {
	chunkID    string
	documentID string
	vec        []float32
	normOK     bool
	meta       map[string]string
	seq        uint64
	deleted    bool
}

// ref locates a chunk's entry by segment and slot.
type ref struct {
	seg  int
	slot int
}

// Option configures the index.
type Option func(*Index)

// WithSegmentSize sets the number of entries per segment.
func WithSegmentSize(n int) Option {
	return func(idx *Index) {
		if n > 0 {
			idx.segSize = n
		}
	}
}

// New creates an empty flat index with the given fixed dimension.
func New(dims int, opts ...Option) (*Index, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("flat: dimension must be positive, got %d", dims)
	}

	idx := &Index{
		dims:    dims,
		segSize: DefaultSegmentSize,
		refs:    make(map[string]ref),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Upsert inserts or replaces entries. The whole batch is validated before
// any entry is applied, so a dimension mismatch anywhere rejects the batch
// and leaves the index unchanged.
func (idx *Index) Upsert(_ context.Context, entries []driven.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return domain.ErrIndexClosed
	}

	for _, e := range entries {
		if e.ChunkID == "" {
			return fmt.Errorf("%w: entry without chunk ID", domain.ErrInvalidInput)
		}
		if len(e.Vector) != idx.dims {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index expects %d",
				domain.ErrDimensionMismatch, e.ChunkID, len(e.Vector), idx.dims)
		}
	}

	for _, e := range entries {
		vec, normOK := index.Normalise(e.Vector)
		ent := entry{
			chunkID:    e.ChunkID,
			documentID: e.DocumentID,
			vec:        vec,
			normOK:     normOK,
			meta:       cloneMeta(e.Metadata),
			seq:        idx.seq,
		}
		idx.seq++

		if r, ok := idx.refs[e.ChunkID]; ok {
			seg := idx.segments[r.seg]
			seg.mu.Lock()
			seg.entries[r.slot] = ent
			seg.mu.Unlock()
			continue
		}

		segIdx := len(idx.segments) - 1
		if segIdx < 0 || idx.segFull(segIdx) {
			idx.segments = append(idx.segments, &segment{})
			segIdx = len(idx.segments) - 1
		}

		seg := idx.segments[segIdx]
		seg.mu.Lock()
		seg.entries = append(seg.entries, ent)
		slot := len(seg.entries) - 1
		seg.mu.Unlock()

		idx.refs[e.ChunkID] = ref{seg: segIdx, slot: slot}
		idx.live++
	}

	return nil
}

func (idx *Index) segFull(segIdx int) bool {
	seg := idx.segments[segIdx]
	seg.mu.RLock()
	defer seg.mu.RUnlock()
	return len(seg.entries) >= idx.segSize
}

// Search returns the k nearest entries to query by cosine similarity, ties
// broken by insertion order. Only the segment being scanned is locked, so
// concurrent searches and ingestion into other segments proceed freely.
func (idx *Index) Search(_ context.Context, query []float32, k int, filter *driven.VectorFilter) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	if idx.closed {
		idx.mu.RUnlock()
		return nil, domain.ErrIndexClosed
	}
	if len(query) != idx.dims {
		idx.mu.RUnlock()
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			domain.ErrDimensionMismatch, len(query), idx.dims)
	}
	segs := make([]*segment, len(idx.segments))
	copy(segs, idx.segments)
	idx.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}

	q, qok := index.Normalise(query)

	var candidates []index.Scored
	for _, seg := range segs {
		seg.mu.RLock()
		for i := range seg.entries {
			e := &seg.entries[i]
			if e.deleted || !index.Matches(filter, e.documentID, e.meta["source_type"]) {
				continue
			}
			sim := 0.0
			if qok && e.normOK {
				sim = index.Dot(q, e.vec)
			}
			candidates = append(candidates, index.Scored{
				Hit: driven.VectorHit{
					ChunkID:    e.chunkID,
					DocumentID: e.documentID,
					Similarity: sim,
					Metadata:   e.meta,
				},
				Seq: e.seq,
			})
		}
		seg.mu.RUnlock()
	}

	return index.TopK(candidates, k), nil
}

// Delete removes all entries belonging to a document. Segments where
// tombstones outnumber live entries are compacted in place.
func (idx *Index) Delete(_ context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return domain.ErrIndexClosed
	}

	for segIdx, seg := range idx.segments {
		seg.mu.Lock()
		for i := range seg.entries {
			e := &seg.entries[i]
			if e.deleted || e.documentID != documentID {
				continue
			}
			e.deleted = true
			seg.dead++
			idx.live--
			delete(idx.refs, e.chunkID)
		}
		if seg.dead > len(seg.entries)/2 {
			idx.compact(segIdx, seg)
		}
		seg.mu.Unlock()
	}

	return nil
}

// compact rewrites a segment without its tombstones and refreshes the slot
// refs of the surviving entries. Callers hold both locks.
func (idx *Index) compact(segIdx int, seg *segment) {
	kept := make([]entry, 0, len(seg.entries)-seg.dead)
	for i := range seg.entries {
		if !seg.entries[i].deleted {
			kept = append(kept, seg.entries[i])
		}
	}
	seg.entries = kept
	seg.dead = 0

	for slot := range kept {
		idx.refs[kept[slot].chunkID] = ref{seg: segIdx, slot: slot}
	}
}

// Dimensions returns the fixed vector dimension.
func (idx *Index) Dimensions() int {
	return idx.dims
}

// Size returns the number of live entries.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.live
}

// Ping reports whether the index is usable.
func (idx *Index) Ping(_ context.Context) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return domain.ErrIndexClosed
	}
	return nil
}

// Close releases the index. Further calls fail with ErrIndexClosed.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.closed = true
	idx.segments = nil
	idx.refs = nil
	return nil
}

func cloneMeta(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
