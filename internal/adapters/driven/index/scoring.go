package index

import (
	"math"
	"sort"

	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
)

// Normalise returns a unit-length copy of v and whether v had a nonzero
// norm. Zero vectors cannot be normalised; callers score them as 0.
func Normalise(v []float32) ([]float32, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out, false
	}

	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out, true
}

// Dot returns the dot product of a and b with float64 accumulation.
// For unit vectors this is the cosine similarity.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Matches reports whether an entry with the given document and source
// satisfies the filter. A nil filter matches everything.
func Matches(f *driven.VectorFilter, documentID, sourceType string) bool {
	if f == nil {
		return true
	}
	if f.SourceType != "" && f.SourceType != sourceType {
		return false
	}
	if len(f.DocumentIDs) > 0 {
		found := false
		for _, id := range f.DocumentIDs {
			if id == documentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Scored pairs a candidate hit with the insertion sequence used to break
// score ties deterministically.
type Scored struct {
	Hit driven.VectorHit
	Seq uint64
}

// TopK sorts candidates by similarity descending, ties by insertion order,
// and returns the first k hits.
func TopK(candidates []Scored, k int) []driven.VectorHit {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Hit.Similarity != candidates[j].Hit.Similarity {
			return candidates[i].Hit.Similarity > candidates[j].Hit.Similarity
		}
		return candidates[i].Seq < candidates[j].Seq
	})

	if k < len(candidates) {
		candidates = candidates[:k]
	}

	hits := make([]driven.VectorHit, len(candidates))
	for i, c := range candidates {
		hits[i] = c.Hit
	}
	return hits
}
