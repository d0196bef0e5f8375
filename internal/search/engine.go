package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/store"
)

// Engine implements hybrid search over one loaded corpus. All state is
// read-only after construction, so one Engine serves concurrent queries.
type Engine struct {
	passages []store.Passage
	lexical  store.LexicalIndex
	vector   store.VectorIndex // optional
	embedder QueryEmbedder     // optional
	config   EngineConfig
	fusion   *WeightedFusion
}

// Ensure Engine implements Searcher interface.
var _ Searcher = (*Engine)(nil)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithVectorIndex enables the dense signal with the given index.
func WithVectorIndex(v store.VectorIndex) EngineOption {
	return func(e *Engine) {
		e.vector = v
	}
}

// WithQueryEmbedder sets how query text becomes a vector.
func WithQueryEmbedder(q QueryEmbedder) EngineOption {
	return func(e *Engine) {
		e.embedder = q
	}
}

// NewEngine creates a hybrid search engine over passages. The lexical index
// is required; without WithVectorIndex and WithQueryEmbedder every query
// runs lexical-only.
func NewEngine(passages []store.Passage, lexical store.LexicalIndex, config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if lexical == nil {
		return nil, fmt.Errorf("%w: lexical index is required", ErrNilDependency)
	}
	if lexical.Len() != len(passages) {
		return nil, hrerrors.CorruptIndex(
			fmt.Sprintf("lexical index has %d entries for %d passages", lexical.Len(), len(passages)), nil)
	}
	if config.TopK <= 0 {
		config.TopK = DefaultConfig().TopK
	}
	if config.MaxTopK < config.TopK {
		config.MaxTopK = max(DefaultConfig().MaxTopK, config.TopK)
	}
	if err := config.Weights.Validate(); err != nil {
		return nil, hrerrors.ConfigError(err.Error(), err)
	}

	e := &Engine{
		passages: passages,
		lexical:  lexical,
		config:   config,
		fusion:   NewWeightedFusion(config.Weights),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.vector != nil && e.vector.Len() != len(passages) {
		return nil, hrerrors.CorruptIndex(
			fmt.Sprintf("vector index has %d rows for %d passages", e.vector.Len(), len(passages)), nil)
	}
	return e, nil
}

// HybridSearch runs a query with default options.
func (e *Engine) HybridSearch(ctx context.Context, query string) ([]RetrievalHit, error) {
	res, err := e.Search(ctx, query, SearchOptions{})
	if err != nil {
		return nil, err
	}
	return res.Hits, nil
}

// Search executes a hybrid query. The only error is context cancellation:
// a missing or degenerate dense signal degrades to lexical-only ranking.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	k := e.limit(opts)

	explain := Explain{Query: query, TopK: k, Weights: e.config.Weights}
	if len(e.passages) == 0 {
		explain.DenseReason = "empty corpus"
		return &Result{Hits: []RetrievalHit{}, Explain: explain}, nil
	}

	tokens := store.Tokenize(query)

	var (
		dense   []store.ScoredIndex
		lexical []store.ScoredIndex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexical = e.lexicalTopK(tokens, k)
		return nil
	})
	g.Go(func() error {
		dense, explain.Provider, explain.DenseReason = e.denseTopK(gctx, query, k, opts)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	explain.DenseUsed = len(dense) > 0
	explain.DenseCandidates = len(dense)
	explain.LexicalCandidates = len(lexical)

	fused := e.fusion.Fuse(dense, lexical, k)
	explain.Candidates = len(fused)

	hits := make([]RetrievalHit, len(fused))
	for i, c := range fused {
		hits[i] = e.hit(c)
	}

	slog.Debug("search_complete",
		slog.Int("results", len(hits)),
		slog.Bool("dense", explain.DenseUsed),
		slog.String("provider", explain.Provider),
		slog.Duration("duration", time.Since(start)))

	return &Result{Hits: hits, Explain: explain}, nil
}

// limit resolves the per-query K.
func (e *Engine) limit(opts SearchOptions) int {
	k := e.config.TopK
	if opts.Limit > 0 {
		k = min(opts.Limit, e.config.MaxTopK)
	}
	return k
}

func (e *Engine) lexicalTopK(tokens []string, k int) []store.ScoredIndex {
	scores := e.lexical.Scores(tokens)
	top := store.TopIndices(scores, k)

	hits := make([]store.ScoredIndex, len(top))
	for i, idx := range top {
		hits[i] = store.ScoredIndex{Index: idx, Score: scores[idx]}
	}
	logIfFlat("lexical", hits)
	return hits
}

// denseTopK returns the dense candidates, or nil with the reason the
// signal was skipped for this query.
func (e *Engine) denseTopK(ctx context.Context, query string, k int, opts SearchOptions) (hits []store.ScoredIndex, provider, reason string) {
	switch {
	case !e.config.DenseEnabled:
		return nil, "", "dense retrieval disabled"
	case opts.LexicalOnly:
		return nil, "", "lexical-only requested"
	case e.vector == nil || e.embedder == nil:
		return nil, "", "no vector index"
	}

	q, provider, ok := e.embedder.ResolveOne(ctx, query)
	if !ok {
		return nil, "", "embeddings unavailable"
	}

	q = append([]float32(nil), q...)
	store.Normalize(q)

	hits, ok = e.vector.Search(q, k)
	if !ok {
		err := hrerrors.DegenerateSignal(fmt.Sprintf(
			"dense signal disabled: query dim %d, index %dx%d", len(q), e.vector.Len(), e.vector.Dimensions()))
		slog.Debug("dense_signal_degenerate", hrerrors.LogAttrs(err)...)
		return nil, provider, "dimension mismatch or degenerate index"
	}
	logIfFlat("dense", hits)
	return hits, provider, ""
}

// hit materializes a fused candidate.
func (e *Engine) hit(c Candidate) RetrievalHit {
	p := e.passages[c.Index]
	return RetrievalHit{
		Text:          p.Text,
		Source:        p.SourceOrDefault(),
		Score:         c.Score,
		PolicyID:      p.PolicyID,
		Section:       p.Section,
		EffectiveFrom: p.EffectiveFrom,
		Index:         c.Index,
		DenseScore:    c.Dense,
		LexicalScore:  c.Lexical,
	}
}

// logIfFlat notes a zero-variance candidate list; normalization will map
// it to all zeros.
func logIfFlat(signal string, hits []store.ScoredIndex) {
	if len(hits) < 2 {
		return
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		lo = min(lo, h.Score)
		hi = max(hi, h.Score)
	}
	if hi-lo < flatEpsilon {
		slog.Debug("signal_flat", slog.String("signal", signal), slog.Int("candidates", len(hits)))
	}
}

// Len returns the corpus size.
func (e *Engine) Len() int {
	return len(e.passages)
}

// Passage returns the passage with the given policy id and section.
func (e *Engine) Passage(policyID, section string) (store.Passage, bool) {
	for _, p := range e.passages {
		if p.PolicyID == policyID && p.Section == section {
			return p, true
		}
	}
	return store.Passage{}, false
}

// Dimensions returns the vector dimension, 0 without a vector index.
func (e *Engine) Dimensions() int {
	if e.vector == nil {
		return 0
	}
	return e.vector.Dimensions()
}

// Close releases the lexical index.
func (e *Engine) Close() error {
	return e.lexical.Close()
}
