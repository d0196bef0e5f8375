package store

import (
	"cmp"
	"math"
	"slices"
)

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// NewMatrix builds a matrix from equal-length rows.
func NewMatrix(rows [][]float32) *Matrix {
	m := &Matrix{Rows: len(rows)}
	if len(rows) == 0 {
		return m
	}
	m.Cols = len(rows[0])
	m.Data = make([]float32, 0, m.Rows*m.Cols)
	for _, r := range rows {
		m.Data = append(m.Data, r...)
	}
	return m
}

// Row returns row i without copying.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// NormEpsilon keeps L2 normalization finite for all-zero vectors.
const NormEpsilon = 1e-12

// Normalize scales v to unit length in place. A zero vector stays zero.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm < NormEpsilon {
		norm = NormEpsilon
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// TopIndices returns the indices of the k largest scores, descending, with
// ties broken by ascending index. k larger than len(scores) is clamped.
func TopIndices(scores []float64, k int) []int {
	if k <= 0 || len(scores) == 0 {
		return []int{}
	}
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

// FlatIndex is an exact dot-product index over L2-normalized rows.
type FlatIndex struct {
	vectors *Matrix
}

var _ VectorIndex = (*FlatIndex)(nil)

// NewFlatIndex wraps a matrix. Rows are expected to be unit length already.
func NewFlatIndex(m *Matrix) *FlatIndex {
	if m == nil {
		m = &Matrix{}
	}
	return &FlatIndex{vectors: m}
}

// usable reports whether a query of length dims can be scored.
func usable(m *Matrix, dims int) bool {
	return m.Rows > 0 && m.Cols > 1 && dims == m.Cols
}

// Similarity returns V·q for every row. ok is false when the dense signal
// is unusable for q.
func (f *FlatIndex) Similarity(q []float32) ([]float64, bool) {
	if !usable(f.vectors, len(q)) {
		return nil, false
	}
	scores := make([]float64, f.vectors.Rows)
	for i := range scores {
		scores[i] = dot(f.vectors.Row(i), q)
	}
	return scores, true
}

// Search returns the k best rows by exact similarity.
func (f *FlatIndex) Search(q []float32, k int) ([]ScoredIndex, bool) {
	scores, ok := f.Similarity(q)
	if !ok {
		return nil, false
	}
	top := TopIndices(scores, k)
	hits := make([]ScoredIndex, len(top))
	for i, idx := range top {
		hits[i] = ScoredIndex{Index: idx, Score: scores[idx]}
	}
	return hits, true
}

// Dimensions returns d.
func (f *FlatIndex) Dimensions() int { return f.vectors.Cols }

// Len returns N.
func (f *FlatIndex) Len() int { return f.vectors.Rows }
