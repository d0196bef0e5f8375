package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/smarthr/internal/store"
)

// --- Test Helpers ---

func scored(pairs ...float64) []store.ScoredIndex {
	out := make([]store.ScoredIndex, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, store.ScoredIndex{Index: int(pairs[i]), Score: pairs[i+1]})
	}
	return out
}

func indices(cs []Candidate) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = c.Index
	}
	return out
}

// --- MinMax ---

func TestMinMax_DistinctValuesSpanUnitInterval(t *testing.T) {
	tests := [][]float64{
		{3, 1, 2},
		{-5, 0.5, 12},
		{0.31, 0.3100001, 0.2},
		{7.25, 1e-3},
	}

	for _, in := range tests {
		out := MinMax(in)
		require.Len(t, out, len(in))

		lo, hi := out[0], out[0]
		for _, v := range out {
			lo = min(lo, v)
			hi = max(hi, v)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		assert.Equal(t, 0.0, lo)
		assert.Equal(t, 1.0, hi)
	}
}

func TestMinMax_FlatVectorMapsToZeros(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 0}, MinMax([]float64{4.2, 4.2, 4.2}))
	assert.Equal(t, []float64{0, 0}, MinMax([]float64{1, 1 + 1e-12}))
	assert.Equal(t, []float64{0}, MinMax([]float64{9}))
	assert.Empty(t, MinMax(nil))
}

func TestMinMax_DoesNotModifyInput(t *testing.T) {
	in := []float64{2, 4}
	_ = MinMax(in)
	assert.Equal(t, []float64{2, 4}, in)
}

// --- WeightedFusion ---

func TestWeightedFusion_BlendsNormalizedSignals(t *testing.T) {
	// Given: dense ranks 2 > 1 > 0, lexical only favors 1
	f := NewWeightedFusion(DefaultWeights())
	dense := scored(2, 0.9, 1, 0.7, 0, 0.3)
	lexical := scored(1, 5.0, 3, 1.0)

	// When
	got := f.Fuse(dense, lexical, 6)

	// Then: 1 = 0.6*(0.4/0.6) + 0.4*1, 2 = 0.6*1, 3 = 0.4*0, 0 = 0
	require.Len(t, got, 4)
	assert.Equal(t, []int{1, 2, 0, 3}, indices(got))
	assert.InDelta(t, 0.6*(0.4/0.6)+0.4, got[0].Score, 1e-12)
	assert.InDelta(t, 0.6, got[1].Score, 1e-12)
	assert.Equal(t, 0.0, got[2].Score)
	assert.Equal(t, 0.0, got[3].Score)
	assert.Equal(t, 1.0, got[0].Lexical)
	assert.Equal(t, 1.0, got[1].Dense)
}

func TestWeightedFusion_NoDenseMeansLexicalOnly(t *testing.T) {
	f := NewWeightedFusion(DefaultWeights())

	got := f.Fuse(nil, scored(4, 2.0, 1, 1.0, 0, 0.0), 6)

	assert.Equal(t, []int{4, 1, 0}, indices(got))
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, 0.5, got[1].Score)
}

func TestWeightedFusion_TiesBrokenByCorpusIndex(t *testing.T) {
	f := NewWeightedFusion(DefaultWeights())

	got := f.Fuse(nil, scored(9, 1.0, 3, 1.0, 5, 1.0), 6)

	// All tied (flat -> zeros), so ascending corpus index
	assert.Equal(t, []int{3, 5, 9}, indices(got))
}

func TestWeightedFusion_TruncatesToK(t *testing.T) {
	f := NewWeightedFusion(DefaultWeights())

	got := f.Fuse(scored(0, 0.9, 1, 0.8, 2, 0.7), scored(3, 3, 4, 2, 5, 1), 2)

	assert.Len(t, got, 2)
}

func TestWeightedFusion_EmptyInputs(t *testing.T) {
	got := NewWeightedFusion(DefaultWeights()).Fuse(nil, nil, 6)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.NoError(t, Weights{Dense: 1, Lexical: 0}.Validate())
	assert.Error(t, Weights{Dense: 0.7, Lexical: 0.7}.Validate())
	assert.Error(t, Weights{Dense: -0.2, Lexical: 1.2}.Validate())
}
