package index

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
)

func TestNormalise(t *testing.T) {
	v, ok := Normalise([]float32{3, 4})
	assert.True(t, ok)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)
}

func TestNormalise_ZeroVector(t *testing.T) {
	v, ok := Normalise([]float32{0, 0, 0})
	assert.False(t, ok)
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestNormalise_DoesNotAliasInput(t *testing.T) {
	in := []float32{1, 0}
	out, _ := Normalise(in)
	out[0] = 42
	assert.Equal(t, float32(1), in[0])
}

func TestDot(t *testing.T) {
	a, _ := Normalise([]float32{1, 0})
	b, _ := Normalise([]float32{1, 1})

	assert.InDelta(t, 1.0, Dot(a, a), 1e-6)
	assert.InDelta(t, 1/math.Sqrt2, Dot(a, b), 1e-6)
	assert.InDelta(t, 0.0, Dot(a, []float32{0, 1}), 1e-6)
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name       string
		filter     *driven.VectorFilter
		documentID string
		sourceType string
		want       bool
	}{
		{name: "nil filter matches all", filter: nil, documentID: "d1", sourceType: "file", want: true},
		{name: "source type match", filter: &driven.VectorFilter{SourceType: "file"}, sourceType: "file", want: true},
		{name: "source type mismatch", filter: &driven.VectorFilter{SourceType: "upload"}, sourceType: "file", want: false},
		{name: "document id match", filter: &driven.VectorFilter{DocumentIDs: []string{"d1", "d2"}}, documentID: "d2", want: true},
		{name: "document id mismatch", filter: &driven.VectorFilter{DocumentIDs: []string{"d1"}}, documentID: "d3", want: false},
		{
			name:       "both constraints must hold",
			filter:     &driven.VectorFilter{SourceType: "file", DocumentIDs: []string{"d1"}},
			documentID: "d1",
			sourceType: "upload",
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.filter, tt.documentID, tt.sourceType))
		})
	}
}

func TestTopK(t *testing.T) {
	candidates := []Scored{
		{Hit: driven.VectorHit{ChunkID: "c", Similarity: 0.5}, Seq: 3},
		{Hit: driven.VectorHit{ChunkID: "a", Similarity: 0.9}, Seq: 1},
		{Hit: driven.VectorHit{ChunkID: "b", Similarity: 0.7}, Seq: 2},
	}

	hits := TopK(candidates, 2)
	assert.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.Equal(t, "b", hits[1].ChunkID)
}

func TestTopK_TiesBreakByInsertionOrder(t *testing.T) {
	candidates := []Scored{
		{Hit: driven.VectorHit{ChunkID: "late", Similarity: 0.8}, Seq: 9},
		{Hit: driven.VectorHit{ChunkID: "early", Similarity: 0.8}, Seq: 2},
	}

	hits := TopK(candidates, 2)
	assert.Equal(t, "early", hits[0].ChunkID)
	assert.Equal(t, "late", hits[1].ChunkID)
}

func TestTopK_KLargerThanCandidates(t *testing.T) {
	candidates := []Scored{{Hit: driven.VectorHit{ChunkID: "only", Similarity: 0.5}, Seq: 1}}
	assert.Len(t, TopK(candidates, 10), 1)
}
