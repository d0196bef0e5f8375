package store

import (
	"cmp"
	"slices"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWConfig holds graph parameters for the approximate index.
type HNSWConfig struct {
	M        int // max neighbors per node
	EfSearch int // candidate list size at query time
}

// DefaultHNSWConfig returns coder/hnsw's recommended parameters.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfSearch: 64}
}

// HNSWIndex answers dense queries approximately using coder/hnsw. Graph keys
// are corpus ordinals; returned scores are exact dot products against the
// stored rows so they are comparable with FlatIndex.
type HNSWIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	vectors *Matrix
}

var _ VectorIndex = (*HNSWIndex)(nil)

// NewHNSWIndex builds a graph over the matrix rows. A degenerate matrix
// (no rows or d <= 1) produces an index whose Search always reports !ok.
func NewHNSWIndex(m *Matrix, cfg HNSWConfig) *HNSWIndex {
	if m == nil {
		m = &Matrix{}
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	idx := &HNSWIndex{graph: graph, vectors: m}
	if !usable(m, m.Cols) {
		return idx
	}

	nodes := make([]hnsw.Node[uint64], 0, m.Rows)
	for i := 0; i < m.Rows; i++ {
		nodes = append(nodes, hnsw.MakeNode(uint64(i), m.Row(i)))
	}
	graph.Add(nodes...)
	return idx
}

// Search returns up to k approximate neighbors ranked by exact similarity.
func (h *HNSWIndex) Search(q []float32, k int) ([]ScoredIndex, bool) {
	if !usable(h.vectors, len(q)) {
		return nil, false
	}
	if k <= 0 {
		return []ScoredIndex{}, true
	}

	h.mu.RLock()
	nodes := h.graph.Search(q, k)
	h.mu.RUnlock()

	hits := make([]ScoredIndex, 0, len(nodes))
	for _, n := range nodes {
		i := int(n.Key)
		hits = append(hits, ScoredIndex{Index: i, Score: dot(h.vectors.Row(i), q)})
	}
	slices.SortFunc(hits, func(a, b ScoredIndex) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return hits, true
}

// Dimensions returns d.
func (h *HNSWIndex) Dimensions() int { return h.vectors.Cols }

// Len returns N.
func (h *HNSWIndex) Len() int { return h.vectors.Rows }
