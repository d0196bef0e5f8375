package embed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
)

func TestChain_FirstSuccessfulStrategyWins(t *testing.T) {
	// Given: a failing primary and a working fallback
	primary := newFake("hosted", 4)
	primary.err = errBackendDown
	fallback := newFake("local", 3)
	chain := NewChain(time.Second,
		Strategy{Name: "openai", Embedder: primary},
		Strategy{Name: "local", Embedder: fallback},
	)

	// When
	out := chain.Resolve(context.Background(), []string{"q1", "q2"})

	// Then: the fallback provided normalized vectors
	require.True(t, out.Available)
	assert.Equal(t, "local", out.Provider)
	require.Len(t, out.Vectors, 2)
	assert.InDelta(t, 1.0, norm(out.Vectors[0]), 1e-6)
	assert.Equal(t, int32(1), primary.calls.Load())
}

func TestChain_AllFailIsUnavailableNotError(t *testing.T) {
	a := newFake("a", 2)
	a.err = errBackendDown
	b := newFake("b", 2)
	b.err = errBackendDown
	chain := NewChain(time.Second, Strategy{Name: "a", Embedder: a}, Strategy{Name: "b", Embedder: b})

	out := chain.Resolve(context.Background(), []string{"q"})

	assert.False(t, out.Available)
	assert.Nil(t, out.Vectors)
	assert.Empty(t, out.Provider)

	_, _, ok := chain.ResolveOne(context.Background(), "q")
	assert.False(t, ok)
}

type panicEmbedder struct{ fakeEmbedder }

func (p *panicEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	panic("model crashed")
}

func TestChain_PanickingStrategyFallsThrough(t *testing.T) {
	chain := NewChain(time.Second,
		Strategy{Name: "broken", Embedder: &panicEmbedder{}},
		Strategy{Name: "local", Embedder: newFake("local", 3)},
	)

	v, provider, ok := chain.ResolveOne(context.Background(), "q")

	require.True(t, ok)
	assert.Equal(t, "local", provider)
	assert.Len(t, v, 3)
}

type wrongCountEmbedder struct{ fakeEmbedder }

func (w *wrongCountEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return [][]float32{{1, 0}}, nil
}

func TestChain_RejectsMalformedBatch(t *testing.T) {
	chain := NewChain(time.Second, Strategy{Name: "bad", Embedder: &wrongCountEmbedder{}})

	out := chain.Resolve(context.Background(), []string{"a", "b"})

	assert.False(t, out.Available)
}

type slowEmbedder struct{ fakeEmbedder }

func (s *slowEmbedder) EmbedBatch(ctx context.Context, _ []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestChain_TimeoutBoundsEachAttempt(t *testing.T) {
	chain := NewChain(30*time.Millisecond,
		Strategy{Name: "slow", Embedder: &slowEmbedder{}},
		Strategy{Name: "local", Embedder: newFake("local", 2)},
	)

	start := time.Now()
	out := chain.Resolve(context.Background(), []string{"q"})

	assert.True(t, out.Available)
	assert.Equal(t, "local", out.Provider)
	assert.Less(t, time.Since(start), time.Second)
}

func TestChain_OpenBreakerSkipsProvider(t *testing.T) {
	// Given: a primary that trips its breaker after one failure
	primary := newFake("hosted", 2)
	primary.err = errBackendDown
	chain := NewChain(time.Second,
		Strategy{Name: "openai", Embedder: primary, Breaker: hrerrors.NewCircuitBreaker("openai", hrerrors.WithMaxFailures(1), hrerrors.WithCooldown(time.Hour))},
		Strategy{Name: "local", Embedder: newFake("local", 2)},
	)

	// When: two queries are resolved
	_ = chain.Resolve(context.Background(), []string{"q"})
	out := chain.Resolve(context.Background(), []string{"q"})

	// Then: the primary was only called once
	assert.True(t, out.Available)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, []string{"openai", "local"}, chain.Strategies())
}

func TestChain_EmptyInput(t *testing.T) {
	var nilChain *Chain
	assert.False(t, nilChain.Resolve(context.Background(), []string{"q"}).Available)
	assert.False(t, NewChain(0).Resolve(context.Background(), nil).Available)
}
