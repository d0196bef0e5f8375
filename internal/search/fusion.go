package search

import (
	"cmp"
	"slices"

	"github.com/Aman-CERP/smarthr/internal/store"
)

// flatEpsilon is the spread below which a score vector counts as constant.
const flatEpsilon = 1e-9

// MinMax rescales scores to [0,1] via (x-min)/(max-min). A vector whose
// spread is below 1e-9 carries no ranking signal and maps to all zeros.
// The input is not modified.
func MinMax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = min(lo, s)
		hi = max(hi, s)
	}
	spread := hi - lo
	if spread < flatEpsilon {
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / spread
	}
	return out
}

// Candidate is one passage after fusion.
type Candidate struct {
	Index   int     // corpus ordinal
	Score   float64 // fused score
	Dense   float64 // normalized dense score, 0 if not a dense candidate
	Lexical float64 // normalized lexical score, 0 if not a lexical candidate
}

// WeightedFusion blends per-signal min-max normalized top-K lists.
//
// Algorithm:
//
//	score(d) = w_dense * dense_norm(d) + w_lexical * lexical_norm(d)
//
// when the dense list is non-empty, otherwise score(d) = lexical_norm(d).
// A passage missing from one list contributes 0 for that signal.
type WeightedFusion struct {
	Weights Weights
}

// NewWeightedFusion creates a fusion with the given weights.
func NewWeightedFusion(w Weights) *WeightedFusion {
	return &WeightedFusion{Weights: w}
}

// Fuse unions both candidate lists and returns at most k candidates sorted
// by fused score descending, ties broken by ascending corpus index.
func (f *WeightedFusion) Fuse(dense, lexical []store.ScoredIndex, k int) []Candidate {
	if len(dense) == 0 && len(lexical) == 0 {
		return []Candidate{}
	}

	denseNorm := MinMax(rawScores(dense))
	lexicalNorm := MinMax(rawScores(lexical))

	byIndex := make(map[int]*Candidate, len(dense)+len(lexical))
	order := make([]int, 0, len(dense)+len(lexical))
	get := func(idx int) *Candidate {
		if c, ok := byIndex[idx]; ok {
			return c
		}
		c := &Candidate{Index: idx}
		byIndex[idx] = c
		order = append(order, idx)
		return c
	}

	for i, h := range dense {
		get(h.Index).Dense = denseNorm[i]
	}
	for i, h := range lexical {
		get(h.Index).Lexical = lexicalNorm[i]
	}

	useDense := len(dense) > 0
	results := make([]Candidate, 0, len(order))
	for _, idx := range order {
		c := byIndex[idx]
		if useDense {
			c.Score = f.Weights.Dense*c.Dense + f.Weights.Lexical*c.Lexical
		} else {
			c.Score = c.Lexical
		}
		results = append(results, *c)
	}

	slices.SortFunc(results, compareCandidates)
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

// compareCandidates orders by score descending, then index ascending.
func compareCandidates(a, b Candidate) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

func rawScores(hits []store.ScoredIndex) []float64 {
	out := make([]float64, len(hits))
	for i, h := range hits {
		out[i] = h.Score
	}
	return out
}
