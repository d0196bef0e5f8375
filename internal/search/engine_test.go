package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/smarthr/internal/store"
)

// fakeQueryEmbedder returns a fixed vector, or reports unavailability.
type fakeQueryEmbedder struct {
	vec   []float32
	ok    bool
	calls atomic.Int32
}

func (f *fakeQueryEmbedder) ResolveOne(_ context.Context, _ string) ([]float32, string, bool) {
	f.calls.Add(1)
	if !f.ok {
		return nil, "", false
	}
	return f.vec, "fake", true
}

func ptoPassages() []store.Passage {
	return []store.Passage{
		{ID: "p0", PolicyID: "remote-work", Section: "sec-00", Text: "Remote work requires written approval from your manager each quarter.", EffectiveFrom: "2025-01-01"},
		{ID: "p1", PolicyID: "leave", Section: "sec-01", Text: "Employees may carry over up to five unused PTO days into the next calendar year.", EffectiveFrom: "2025-01-01", Source: "file://leave.md#sec-01"},
		{ID: "p2", PolicyID: "parental", Section: "sec-00", Text: "Parental leave provides sixteen weeks of paid time off for all new parents.", EffectiveFrom: "2025-03-01"},
	}
}

// ptoVectors puts the query direction [0,1] closest to passage 2.
func ptoVectors() *store.Matrix {
	return store.NewMatrix([][]float32{{1, 0}, {0.8, 0.6}, {0, 1}})
}

func newTestEngine(t *testing.T, cfg EngineConfig, q QueryEmbedder, vectors *store.Matrix) *Engine {
	t.Helper()
	passages := ptoPassages()
	opts := []EngineOption{}
	if q != nil {
		opts = append(opts, WithQueryEmbedder(q))
	}
	if vectors != nil {
		opts = append(opts, WithVectorIndex(store.NewFlatIndex(vectors)))
	}
	e, err := NewEngine(passages, store.NewOkapiBM25(store.TokenizeAll(passages), store.DefaultBM25Config()), cfg, opts...)
	require.NoError(t, err)
	return e
}

func hitIndices(hits []RetrievalHit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Index
	}
	return out
}

func TestEngine_LexicalWinnerForPTOQuestion(t *testing.T) {
	// Given: dense retrieval unavailable
	e := newTestEngine(t, DefaultConfig(), &fakeQueryEmbedder{ok: false}, ptoVectors())

	// When
	hits, err := e.HybridSearch(context.Background(), "How many PTO days carry over?")

	// Then: the carry-over passage ranks first on lexical evidence
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, 1, hits[0].Index)
	assert.Equal(t, "file://leave.md#sec-01", hits[0].Source)
	assert.Equal(t, 1.0, hits[0].Score)
	assert.Equal(t, []int{1, 0, 2}, hitIndices(hits))
}

func TestEngine_FusesDenseAndLexical(t *testing.T) {
	// Given: the query embeds next to passage 2, lexically matches passage 1
	q := &fakeQueryEmbedder{vec: []float32{0, 1}, ok: true}
	e := newTestEngine(t, DefaultConfig(), q, ptoVectors())

	// When
	res, err := e.Search(context.Background(), "How many PTO days carry over?", SearchOptions{})

	// Then: 1 = 0.6*0.6 + 0.4*1, 2 = 0.6*1, 0 = 0
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, hitIndices(res.Hits))
	assert.InDelta(t, 0.76, res.Hits[0].Score, 1e-6)
	assert.InDelta(t, 0.6, res.Hits[1].Score, 1e-6)
	assert.True(t, res.Explain.DenseUsed)
	assert.Equal(t, "fake", res.Explain.Provider)
	assert.Equal(t, 3, res.Explain.Candidates)
}

func TestEngine_ProviderFailureFallsBackToLexical(t *testing.T) {
	// Given: every embedding provider fails
	failing := newTestEngine(t, DefaultConfig(), &fakeQueryEmbedder{ok: false}, ptoVectors())
	lexicalOnly := newTestEngine(t, EngineConfig{TopK: 6, Weights: DefaultWeights()}, nil, nil)

	// When
	res, err := failing.Search(context.Background(), "sixteen weeks parental leave", SearchOptions{})
	want, err2 := lexicalOnly.HybridSearch(context.Background(), "sixteen weeks parental leave")

	// Then: no error, non-empty, identical to pure lexical ranking
	require.NoError(t, err)
	require.NoError(t, err2)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, want, res.Hits)
	assert.False(t, res.Explain.DenseUsed)
	assert.Equal(t, "embeddings unavailable", res.Explain.DenseReason)
}

func TestEngine_DenseDisabledEqualsLexicalTopK(t *testing.T) {
	// Given: dense retrieval switched off even though an embedder works
	q := &fakeQueryEmbedder{vec: []float32{0, 1}, ok: true}
	cfg := DefaultConfig()
	cfg.DenseEnabled = false
	e := newTestEngine(t, cfg, q, ptoVectors())
	passages := ptoPassages()
	bm25 := store.NewOkapiBM25(store.TokenizeAll(passages), store.DefaultBM25Config())

	// When
	hits, err := e.HybridSearch(context.Background(), "leave approval weeks")

	// Then: the order is exactly BM25's top-K and the embedder was never called
	require.NoError(t, err)
	want := store.TopIndices(bm25.Scores(store.Tokenize("leave approval weeks")), 6)
	assert.Equal(t, want, hitIndices(hits))
	assert.Equal(t, int32(0), q.calls.Load())
}

func TestEngine_LexicalOnlyOption(t *testing.T) {
	q := &fakeQueryEmbedder{vec: []float32{0, 1}, ok: true}
	e := newTestEngine(t, DefaultConfig(), q, ptoVectors())

	res, err := e.Search(context.Background(), "PTO", SearchOptions{LexicalOnly: true})

	require.NoError(t, err)
	assert.False(t, res.Explain.DenseUsed)
	assert.Equal(t, int32(0), q.calls.Load())
}

func TestEngine_DimensionMismatchDisablesDense(t *testing.T) {
	q := &fakeQueryEmbedder{vec: []float32{0, 1, 0}, ok: true}
	e := newTestEngine(t, DefaultConfig(), q, ptoVectors())

	res, err := e.Search(context.Background(), "How many PTO days carry over?", SearchOptions{})

	require.NoError(t, err)
	assert.False(t, res.Explain.DenseUsed)
	assert.Equal(t, "fake", res.Explain.Provider)
	assert.Equal(t, 1, res.Hits[0].Index)
}

func TestEngine_PlaceholderMatrixDisablesDense(t *testing.T) {
	// Given: the N x 1 zero matrix written when no embedder was available at build
	placeholder := store.NewMatrix([][]float32{{0}, {0}, {0}})
	q := &fakeQueryEmbedder{vec: []float32{1}, ok: true}
	e := newTestEngine(t, DefaultConfig(), q, placeholder)

	res, err := e.Search(context.Background(), "PTO days", SearchOptions{})

	require.NoError(t, err)
	assert.False(t, res.Explain.DenseUsed)
	assert.Equal(t, 1, res.Hits[0].Index)
}

func TestEngine_EmptyQueryDoesNotFail(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), nil, nil)

	hits, err := e.HybridSearch(context.Background(), "   ")

	require.NoError(t, err)
	assert.Len(t, hits, 3)
	for _, h := range hits {
		assert.Zero(t, h.Score)
	}
	assert.Equal(t, []int{0, 1, 2}, hitIndices(hits))
}

func TestEngine_EmptyCorpusReturnsEmptyList(t *testing.T) {
	e, err := NewEngine(nil, store.NewOkapiBM25(nil, store.DefaultBM25Config()), DefaultConfig())
	require.NoError(t, err)

	hits, err := e.HybridSearch(context.Background(), "anything")

	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestEngine_DefaultSourceWhenMissing(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), nil, nil)

	hits, err := e.HybridSearch(context.Background(), "parental leave weeks")

	require.NoError(t, err)
	assert.Equal(t, 2, hits[0].Index)
	assert.Equal(t, "policy://parental/sec-00", hits[0].Source)
	assert.Equal(t, "2025-03-01", hits[0].EffectiveFrom)
}

func corpus(n int) []store.Passage {
	words := []string{"pto", "leave", "remote", "expense", "travel", "bonus", "holiday", "sick", "payroll", "benefits", "approval", "manager"}
	out := make([]store.Passage, n)
	for i := range out {
		text := ""
		for j := 0; j < 8; j++ {
			text += words[(i*7+j*j+i/3)%len(words)] + " "
		}
		out[i] = store.Passage{ID: fmt.Sprint(i), PolicyID: "p", Section: fmt.Sprintf("sec-%02d", i), Text: text}
	}
	return out
}

func TestEngine_ResultProperties(t *testing.T) {
	// Given: a larger corpus with a working dense signal
	passages := corpus(60)
	rows := make([][]float32, len(passages))
	for i := range rows {
		v := []float32{float32(i%5) + 1, float32(i%7) + 1, float32(i%3) + 1}
		store.Normalize(v)
		rows[i] = v
	}
	q := &fakeQueryEmbedder{vec: []float32{1, 2, 3}, ok: true}
	e, err := NewEngine(passages, store.NewOkapiBM25(store.TokenizeAll(passages), store.DefaultBM25Config()),
		DefaultConfig(), WithVectorIndex(store.NewFlatIndex(store.NewMatrix(rows))), WithQueryEmbedder(q))
	require.NoError(t, err)

	for _, query := range []string{"pto leave", "travel expense approval", "bonus", "nothing matches here"} {
		t.Run(query, func(t *testing.T) {
			// When: the same query runs twice
			first, err := e.HybridSearch(context.Background(), query)
			require.NoError(t, err)
			second, err := e.HybridSearch(context.Background(), query)
			require.NoError(t, err)

			// Then: bounded, sorted, in [0,1], reproducible
			assert.LessOrEqual(t, len(first), 6)
			assert.NotEmpty(t, first)
			for i := range first {
				assert.GreaterOrEqual(t, first[i].Score, 0.0)
				assert.LessOrEqual(t, first[i].Score, 1.0+1e-12)
				if i > 0 {
					prev, cur := first[i-1], first[i]
					assert.True(t, prev.Score > cur.Score || (prev.Score == cur.Score && prev.Index < cur.Index))
				}
			}
			assert.Equal(t, first, second)
		})
	}
}

func TestEngine_LimitOverride(t *testing.T) {
	passages := corpus(20)
	e, err := NewEngine(passages, store.NewOkapiBM25(store.TokenizeAll(passages), store.DefaultBM25Config()), DefaultConfig())
	require.NoError(t, err)

	res, err := e.Search(context.Background(), "pto", SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)

	res, err = e.Search(context.Background(), "pto", SearchOptions{Limit: 500})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 20)
}

func TestEngine_CancelledContext(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.HybridSearch(ctx, "PTO")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngine_Validation(t *testing.T) {
	passages := ptoPassages()
	lex := store.NewOkapiBM25(store.TokenizeAll(passages), store.DefaultBM25Config())

	_, err := NewEngine(passages, nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewEngine(passages[:2], lex, DefaultConfig())
	assert.Error(t, err)

	_, err = NewEngine(passages, lex, DefaultConfig(), WithVectorIndex(store.NewFlatIndex(store.NewMatrix([][]float32{{1, 0}}))))
	assert.Error(t, err)

	_, err = NewEngine(passages, lex, EngineConfig{TopK: 6, Weights: Weights{Dense: 0.9, Lexical: 0.9}})
	assert.Error(t, err)

	e, err := NewEngine(passages, lex, EngineConfig{Weights: DefaultWeights()})
	require.NoError(t, err)
	assert.Equal(t, 3, e.Len())
	assert.Equal(t, 0, e.Dimensions())
	assert.NoError(t, e.Close())
}
