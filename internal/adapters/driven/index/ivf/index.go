// Package ivf provides a partitioned vector index.
//
// Entries are assigned to the nearest of a fixed set of centroids, and a
// search scans only the probes partitions whose centroids sit closest to
// the query. That bounds scan cost on large corpora at the price of recall:
// a near neighbour in an unprobed partition is missed. Centroids are seeded
// from the first vectors ingested, which works well when the corpus is
// loaded in bulk at startup.
package ivf

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/veritas-labs/lexquery/internal/adapters/driven/index"
	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// DefaultPartitions is the default number of partitions.
const DefaultPartitions = 64

// DefaultProbes is the default number of partitions scanned per search.
const DefaultProbes = 8

// Index is a partitioned vector index.
type Index struct {
	mu         sync.RWMutex
	dims       int
	nparts     int
	probes     int
	partitions []*partition
	refs       map[string]ref
	seq        uint64
	live       int
	closed     bool
}

type partition struct {
	mu       sync.RWMutex
	centroid []float32
	entries  []entry
	dead     int
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

// ref locates a chunk's entry by partition and slot.
type ref struct {
	part int
	slot int
}

// Option configures the index.
type Option func(*Index)

// WithPartitions sets the number of partitions.
func WithPartitions(n int) Option {
	return func(idx *Index) {
		if n > 0 {
			idx.nparts = n
		}
	}
}

// WithProbes sets how many partitions a search scans.
func WithProbes(n int) Option {
	return func(idx *Index) {
		if n > 0 {
			idx.probes = n
		}
	}
}

// New creates an empty partitioned index with the given fixed dimension.
func New(dims int, opts ...Option) (*Index, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("ivf: dimension must be positive, got %d", dims)
	}

	idx := &Index{
		dims:   dims,
		nparts: DefaultPartitions,
		probes: DefaultProbes,
		refs:   make(map[string]ref),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.probes > idx.nparts {
		idx.probes = idx.nparts
	}
	return idx, nil
}

// Upsert inserts or replaces entries. The whole batch is validated before
// any entry is applied. Replacing a chunk re-assigns it to the partition
// nearest its new vector.
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
			idx.tombstone(r)
			idx.live--
		}
		idx.insert(ent)
		idx.live++
	}

	return nil
}

// insert places an entry into a partition, seeding a new partition while
// fewer than the configured count exist. Callers hold the index lock.
func (idx *Index) insert(ent entry) {
	var partIdx int
	if len(idx.partitions) < idx.nparts {
		idx.partitions = append(idx.partitions, &partition{centroid: ent.vec})
		partIdx = len(idx.partitions) - 1
	} else {
		partIdx = idx.nearest(ent.vec)
	}

	part := idx.partitions[partIdx]
	part.mu.Lock()
	part.entries = append(part.entries, ent)
	slot := len(part.entries) - 1
	part.mu.Unlock()

	idx.refs[ent.chunkID] = ref{part: partIdx, slot: slot}
}

// nearest returns the partition whose centroid is most similar to vec,
// ties going to the lower partition number.
func (idx *Index) nearest(vec []float32) int {
	best := 0
	bestSim := index.Dot(vec, idx.partitions[0].centroid)
	for i := 1; i < len(idx.partitions); i++ {
		if sim := index.Dot(vec, idx.partitions[i].centroid); sim > bestSim {
			best = i
			bestSim = sim
		}
	}
	return best
}

// tombstone marks the entry at r deleted. Callers hold the index lock.
func (idx *Index) tombstone(r ref) {
	part := idx.partitions[r.part]
	part.mu.Lock()
	if !part.entries[r.slot].deleted {
		part.entries[r.slot].deleted = true
		part.dead++
		delete(idx.refs, part.entries[r.slot].chunkID)
	}
	part.mu.Unlock()
}

// Search scans the probes partitions nearest the query and returns the k
// best hits by cosine similarity, ties broken by insertion order.
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
	parts := make([]*partition, len(idx.partitions))
	copy(parts, idx.partitions)
	probes := idx.probes
	idx.mu.RUnlock()

	if k <= 0 || len(parts) == 0 {
		return nil, nil
	}

	q, qok := index.Normalise(query)

	var candidates []index.Scored
	for _, part := range probeOrder(parts, q, probes) {
		part.mu.RLock()
		for i := range part.entries {
			e := &part.entries[i]
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
		part.mu.RUnlock()
	}

	return index.TopK(candidates, k), nil
}

// probeOrder returns the probes partitions with the most similar centroids,
// ties going to the lower partition number.
func probeOrder(parts []*partition, q []float32, probes int) []*partition {
	type ranked struct {
		part *partition
		sim  float64
		pos  int
	}

	order := make([]ranked, len(parts))
	for i, part := range parts {
		order[i] = ranked{part: part, sim: index.Dot(q, part.centroid), pos: i}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].sim != order[j].sim {
			return order[i].sim > order[j].sim
		}
		return order[i].pos < order[j].pos
	})

	if probes < len(order) {
		order = order[:probes]
	}

	picked := make([]*partition, len(order))
	for i, r := range order {
		picked[i] = r.part
	}
	return picked
}

// Delete removes all entries belonging to a document. Partitions where
// tombstones outnumber live entries are compacted in place.
func (idx *Index) Delete(_ context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return domain.ErrIndexClosed
	}

	for partIdx, part := range idx.partitions {
		part.mu.Lock()
		for i := range part.entries {
			e := &part.entries[i]
			if e.deleted || e.documentID != documentID {
				continue
			}
			e.deleted = true
			part.dead++
			idx.live--
			delete(idx.refs, e.chunkID)
		}
		if part.dead > len(part.entries)/2 {
			idx.compact(partIdx, part)
		}
		part.mu.Unlock()
	}

	return nil
}

// compact rewrites a partition without its tombstones and refreshes the
// slot refs of the surviving entries. Callers hold both locks.
func (idx *Index) compact(partIdx int, part *partition) {
	kept := make([]entry, 0, len(part.entries)-part.dead)
	for i := range part.entries {
		if !part.entries[i].deleted {
			kept = append(kept, part.entries[i])
		}
	}
	part.entries = kept
	part.dead = 0

	for slot := range kept {
		idx.refs[kept[slot].chunkID] = ref{part: partIdx, slot: slot}
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
	idx.partitions = nil
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
