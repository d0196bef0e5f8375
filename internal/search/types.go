// Package search implements hybrid retrieval over the policy corpus.
// Dense (embedding) and lexical (BM25) candidates are min-max normalized per
// signal and blended with fixed weights into one ranked list.
package search

import (
	"context"
	"fmt"
	"math"
)

// Searcher answers hybrid retrieval queries.
type Searcher interface {
	// HybridSearch returns at most TopK hits ordered by descending fused score.
	HybridSearch(ctx context.Context, query string) ([]RetrievalHit, error)

	// Search is HybridSearch with per-query options and explain data.
	Search(ctx context.Context, query string, opts SearchOptions) (*Result, error)
}

// QueryEmbedder embeds a single query. ok is false when no provider could
// produce a vector; the engine then runs lexical-only.
type QueryEmbedder interface {
	ResolveOne(ctx context.Context, text string) (vector []float32, provider string, ok bool)
}

// RetrievalHit is one evidence passage in a result list.
// Hits are built fresh per query and never mutated afterwards.
type RetrievalHit struct {
	Text          string  `json:"text"`
	Source        string  `json:"source"`
	Score         float64 `json:"score"`
	PolicyID      string  `json:"policy_id"`
	Section       string  `json:"section"`
	EffectiveFrom string  `json:"effective_from"`

	// Index is the passage's corpus ordinal.
	Index int `json:"index"`

	// DenseScore and LexicalScore are the normalized per-signal scores
	// that went into Score (0 when the passage was not a candidate there).
	DenseScore   float64 `json:"dense_score"`
	LexicalScore float64 `json:"lexical_score"`
}

// Weights configures the relative importance of dense vs lexical signals.
type Weights struct {
	// Dense is the weight for the embedding signal (default: 0.6).
	Dense float64 `json:"dense"`

	// Lexical is the weight for the BM25 signal (default: 0.4).
	Lexical float64 `json:"lexical"`
}

// DefaultWeights favors semantic recall while keeping keyword anchoring.
func DefaultWeights() Weights {
	return Weights{Dense: 0.6, Lexical: 0.4}
}

// Validate checks both weights are in [0,1] and sum to 1.
func (w Weights) Validate() error {
	if w.Dense < 0 || w.Dense > 1 || w.Lexical < 0 || w.Lexical > 1 {
		return fmt.Errorf("weights must be between 0 and 1 (dense=%.2f, lexical=%.2f)", w.Dense, w.Lexical)
	}
	if math.Abs(w.Dense+w.Lexical-1) > 0.01 {
		return fmt.Errorf("weights must sum to 1.0 (dense=%.2f + lexical=%.2f = %.2f)", w.Dense, w.Lexical, w.Dense+w.Lexical)
	}
	return nil
}

// EngineConfig configures the search engine.
type EngineConfig struct {
	// TopK is both the per-signal candidate count and the result length (default: 6).
	TopK int

	// MaxTopK caps per-query overrides (default: 50).
	MaxTopK int

	// Weights blends the normalized signals.
	Weights Weights

	// DenseEnabled turns the embedding signal on (default: true).
	DenseEnabled bool
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		TopK:         6,
		MaxTopK:      50,
		Weights:      DefaultWeights(),
		DenseEnabled: true,
	}
}

// SearchOptions configures a single query.
type SearchOptions struct {
	// Limit overrides TopK for this query; 0 keeps the default.
	Limit int

	// LexicalOnly skips the dense signal.
	LexicalOnly bool
}

// Result is a ranked hit list plus how it was produced.
type Result struct {
	Hits    []RetrievalHit
	Explain Explain
}

// Explain records the decisions made for one query.
type Explain struct {
	Query             string  `json:"query"`
	TopK              int     `json:"top_k"`
	Weights           Weights `json:"weights"`
	DenseUsed         bool    `json:"dense_used"`
	DenseReason       string  `json:"dense_reason,omitempty"`
	Provider          string  `json:"provider,omitempty"`
	DenseCandidates   int     `json:"dense_candidates"`
	LexicalCandidates int     `json:"lexical_candidates"`
	Candidates        int     `json:"candidates"`
}
