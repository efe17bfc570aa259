package ivf

import (
	"context"
	"errors"
	"testing"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
)

func newTestIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	idx, err := New(3, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return idx
}

func mkEntry(chunkID, documentID string, vec []float32) driven.IndexEntry {
	return driven.IndexEntry{
		ChunkID:    chunkID,
		DocumentID: documentID,
		Vector:     vec,
	}
}

func mustUpsert(t *testing.T, idx *Index, entries ...driven.IndexEntry) {
	t.Helper()
	if err := idx.Upsert(context.Background(), entries); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
}

func hitIDs(hits []driven.VectorHit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	return ids
}

func TestNew_InvalidDimensions(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("New(0) expected error, got nil")
	}
	if _, err := New(-4); err == nil {
		t.Fatal("New(-4) expected error, got nil")
	}
}

func TestNew_ClampsProbesToPartitions(t *testing.T) {
	idx := newTestIndex(t, WithPartitions(2), WithProbes(10))
	if idx.probes != 2 {
		t.Errorf("probes = %d, want clamped to 2", idx.probes)
	}
}

// clusterIndex seeds three partitions on the coordinate axes and then adds
// two more entries near each axis.
func clusterIndex(t *testing.T, probes int) *Index {
	t.Helper()
	idx := newTestIndex(t, WithPartitions(3), WithProbes(probes))

	mustUpsert(t, idx,
		mkEntry("x0", "doc-x", []float32{1, 0, 0}),
		mkEntry("y0", "doc-y", []float32{0, 1, 0}),
		mkEntry("z0", "doc-z", []float32{0, 0, 1}),
		mkEntry("x1", "doc-x", []float32{0.9, 0.1, 0}),
		mkEntry("x2", "doc-x", []float32{0.8, 0.2, 0}),
		mkEntry("y1", "doc-y", []float32{0.1, 0.9, 0}),
		mkEntry("y2", "doc-y", []float32{0, 0.8, 0.2}),
		mkEntry("z1", "doc-z", []float32{0, 0.1, 0.9}),
		mkEntry("z2", "doc-z", []float32{0.2, 0, 0.8}),
	)
	return idx
}

func TestSearch_SingleProbeStaysInNearestPartition(t *testing.T) {
	idx := clusterIndex(t, 1)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("Search() returned %d hits, want the 3 x-axis entries: %v", len(hits), hitIDs(hits))
	}
	if hits[0].ChunkID != "x0" {
		t.Errorf("best hit = %s, want x0", hits[0].ChunkID)
	}
	for _, h := range hits {
		if h.DocumentID != "doc-x" {
			t.Errorf("hit %s from document %s, single probe should not leave the x partition", h.ChunkID, h.DocumentID)
		}
	}
}

func TestSearch_AllProbesFindCrossPartitionHits(t *testing.T) {
	idx := clusterIndex(t, 3)

	// Between the x and y axes: both clusters are relevant.
	hits, err := idx.Search(context.Background(), []float32{0.7, 0.7, 0}, 6, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 6 {
		t.Fatalf("Search() returned %d hits, want 6: %v", len(hits), hitIDs(hits))
	}

	seen := map[string]bool{}
	for _, h := range hits {
		seen[h.DocumentID] = true
	}
	if !seen["doc-x"] || !seen["doc-y"] {
		t.Errorf("hits %v should span both x and y partitions", hitIDs(hits))
	}
}

func TestUpsert_BatchRejectedOnDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, WithPartitions(2))

	err := idx.Upsert(context.Background(), []driven.IndexEntry{
		mkEntry("ok", "doc-1", []float32{1, 0, 0}),
		mkEntry("bad", "doc-1", []float32{1, 0}),
	})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("Upsert() error = %v, want ErrDimensionMismatch", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size() = %d after rejected batch, want 0", idx.Size())
	}
}

func TestUpsert_EmptyChunkIDRejected(t *testing.T) {
	idx := newTestIndex(t)

	err := idx.Upsert(context.Background(), []driven.IndexEntry{
		mkEntry("", "doc-1", []float32{1, 0, 0}),
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Upsert() error = %v, want ErrInvalidInput", err)
	}
}

func TestUpsert_ReplaceReassignsPartition(t *testing.T) {
	idx := clusterIndex(t, 1)

	// Move x1 to the z axis. A single probe from z must now find it.
	mustUpsert(t, idx, mkEntry("x1", "doc-x", []float32{0, 0, 1}))

	if idx.Size() != 9 {
		t.Fatalf("Size() = %d after replace, want 9", idx.Size())
	}

	hits, err := idx.Search(context.Background(), []float32{0, 0, 1}, 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	found := false
	for _, h := range hits {
		if h.ChunkID == "x1" {
			found = true
			if h.Similarity < 0.999 {
				t.Errorf("replaced x1 similarity = %f, want 1.0", h.Similarity)
			}
		}
	}
	if !found {
		t.Errorf("replaced chunk x1 not found in z partition, hits: %v", hitIDs(hits))
	}

	// The stale copy must not surface on the x axis.
	hits, err = idx.Search(context.Background(), []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, h := range hits {
		if h.ChunkID == "x1" {
			t.Errorf("stale x1 still visible in x partition with similarity %f", h.Similarity)
		}
	}
}

func TestSearch_RepeatedQueriesReturnIdenticalOrder(t *testing.T) {
	idx := newTestIndex(t, WithPartitions(4), WithProbes(4))
	mustUpsert(t, idx,
		mkEntry("c1", "d1", []float32{0.9, 0.1, 0}),
		mkEntry("c2", "d2", []float32{0.5, 0.5, 0}),
		mkEntry("c3", "d3", []float32{0.1, 0.9, 0}),
		mkEntry("c4", "d4", []float32{0.7, 0.3, 0}),
	)

	query := []float32{1, 0, 0}
	first, err := idx.Search(context.Background(), query, 4, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		again, err := idx.Search(context.Background(), query, 4, nil)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		got, want := hitIDs(again), hitIDs(first)
		if len(got) != len(want) {
			t.Fatalf("run %d returned %d hits, want %d", i, len(got), len(want))
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("run %d order = %v, want %v", i, got, want)
			}
		}
	}
}

func TestSearch_TieBreaksByInsertionOrder(t *testing.T) {
	idx := newTestIndex(t, WithPartitions(1))

	entries := make([]driven.IndexEntry, 0, 4)
	for i := 0; i < 4; i++ {
		entries = append(entries, mkEntry(
			string(rune('a'+i)), "doc-1", []float32{0, 1, 0},
		))
	}
	mustUpsert(t, idx, entries...)

	hits, err := idx.Search(context.Background(), []float32{0, 1, 0}, 4, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []string{"a", "b", "c", "d"}
	for i, id := range hitIDs(hits) {
		if id != want[i] {
			t.Fatalf("hit order = %v, want %v", hitIDs(hits), want)
		}
	}
}

func TestSearch_Filter(t *testing.T) {
	idx := clusterIndex(t, 3)

	filter := &driven.VectorFilter{DocumentIDs: []string{"doc-y"}}
	hits, err := idx.Search(context.Background(), []float32{0.7, 0.7, 0}, 10, filter)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("filtered Search() returned %d hits, want 3", len(hits))
	}
	for _, h := range hits {
		if h.DocumentID != "doc-y" {
			t.Errorf("hit %s from document %s, want doc-y only", h.ChunkID, h.DocumentID)
		}
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t)

	_, err := idx.Search(context.Background(), []float32{1, 0}, 5, nil)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("Search() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestSearch_EmptyIndexAndZeroK(t *testing.T) {
	idx := newTestIndex(t)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5, nil)
	if err != nil {
		t.Fatalf("Search() on empty index error = %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Search() on empty index returned %d hits, want 0", len(hits))
	}

	mustUpsert(t, idx, mkEntry("c1", "doc-1", []float32{1, 0, 0}))
	hits, err = idx.Search(context.Background(), []float32{1, 0, 0}, 0, nil)
	if err != nil {
		t.Fatalf("Search() with k=0 error = %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Search() with k=0 returned %d hits, want 0", len(hits))
	}
}

func TestSearch_ZeroVectorsScoreZero(t *testing.T) {
	idx := newTestIndex(t, WithPartitions(1))

	mustUpsert(t, idx,
		mkEntry("zero", "doc-1", []float32{0, 0, 0}),
		mkEntry("unit", "doc-1", []float32{1, 0, 0}),
	)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search() returned %d hits, want 2", len(hits))
	}
	if hits[0].ChunkID != "unit" || hits[1].ChunkID != "zero" {
		t.Errorf("hit order = %v, want unit before zero", hitIDs(hits))
	}
	if hits[1].Similarity != 0 {
		t.Errorf("zero vector similarity = %f, want 0", hits[1].Similarity)
	}
}

func TestDelete_RemovesDocumentAndCompacts(t *testing.T) {
	idx := clusterIndex(t, 3)

	// A stray entry that shares the y partition but belongs elsewhere.
	mustUpsert(t, idx, mkEntry("m1", "doc-m", []float32{0.1, 0.95, 0}))

	if err := idx.Delete(context.Background(), "doc-y"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if idx.Size() != 7 {
		t.Errorf("Size() = %d after delete, want 7", idx.Size())
	}

	hits, err := idx.Search(context.Background(), []float32{0, 1, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, h := range hits {
		if h.DocumentID == "doc-y" {
			t.Errorf("hit %s from deleted document still visible", h.ChunkID)
		}
	}

	// The y partition lost three of its four entries, so it compacted and
	// m1 moved slots. Replacing m1 exercises the refreshed ref.
	mustUpsert(t, idx, mkEntry("m1", "doc-m", []float32{0, 1, 0}))
	if idx.Size() != 7 {
		t.Errorf("Size() = %d after replace, want 7", idx.Size())
	}

	hits, err = idx.Search(context.Background(), []float32{0, 1, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	count := 0
	for _, h := range hits {
		if h.ChunkID == "m1" {
			count++
			if h.Similarity < 0.999 {
				t.Errorf("replaced m1 similarity = %f, want 1.0", h.Similarity)
			}
		}
	}
	if count != 1 {
		t.Errorf("replaced chunk m1 appears %d times, want exactly 1", count)
	}
}

func TestDelete_UnknownDocumentIsNoOp(t *testing.T) {
	idx := clusterIndex(t, 3)

	if err := idx.Delete(context.Background(), "doc-unknown"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if idx.Size() != 9 {
		t.Errorf("Size() = %d, want 9 unchanged", idx.Size())
	}
}

func TestClosedIndexRejectsOperations(t *testing.T) {
	idx := newTestIndex(t)
	mustUpsert(t, idx, mkEntry("c1", "doc-1", []float32{1, 0, 0}))

	if err := idx.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := idx.Upsert(context.Background(), []driven.IndexEntry{mkEntry("c2", "doc-1", []float32{0, 1, 0})}); !errors.Is(err, domain.ErrIndexClosed) {
		t.Errorf("Upsert() after close error = %v, want ErrIndexClosed", err)
	}
	if _, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5, nil); !errors.Is(err, domain.ErrIndexClosed) {
		t.Errorf("Search() after close error = %v, want ErrIndexClosed", err)
	}
	if err := idx.Delete(context.Background(), "doc-1"); !errors.Is(err, domain.ErrIndexClosed) {
		t.Errorf("Delete() after close error = %v, want ErrIndexClosed", err)
	}
	if err := idx.Ping(context.Background()); !errors.Is(err, domain.ErrIndexClosed) {
		t.Errorf("Ping() after close error = %v, want ErrIndexClosed", err)
	}
}

func TestPingAndDimensions(t *testing.T) {
	idx := newTestIndex(t)

	if err := idx.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if idx.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d, want 3", idx.Dimensions())
	}
}
