package embed

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelRegistry_LoadsOncePerNameUnderConcurrency(t *testing.T) {
	// Given: a slow loader
	var loads atomic.Int32
	reg, err := NewModelRegistry(func(_ context.Context, name string) (Embedder, error) {
		loads.Add(1)
		time.Sleep(20 * time.Millisecond)
		return newFake(name, 3), nil
	}, 2)
	require.NoError(t, err)

	// When: many goroutines ask for the same model at once
	var wg sync.WaitGroup
	got := make([]Embedder, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = reg.Get(context.Background(), "all-minilm")
		}(i)
	}
	wg.Wait()

	// Then: one load, one shared instance
	assert.Equal(t, int32(1), loads.Load())
	for _, e := range got {
		assert.Same(t, got[0], e)
	}
}

func TestModelRegistry_EvictsLeastRecentlyUsedAndClosesIt(t *testing.T) {
	models := map[string]*fakeEmbedder{}
	var mu sync.Mutex
	reg, err := NewModelRegistry(func(_ context.Context, name string) (Embedder, error) {
		mu.Lock()
		defer mu.Unlock()
		f := newFake(name, 3)
		models[name] = f
		return f, nil
	}, 2)
	require.NoError(t, err)
	ctx := context.Background()

	_, _ = reg.Get(ctx, "a")
	_, _ = reg.Get(ctx, "b")
	_, _ = reg.Get(ctx, "a") // a is now most recent
	_, _ = reg.Get(ctx, "c") // evicts b

	assert.ElementsMatch(t, []string{"a", "c"}, reg.Loaded())
	assert.True(t, models["b"].closed.Load())
	assert.False(t, models["a"].closed.Load())

	require.NoError(t, reg.Close())
	assert.True(t, models["a"].closed.Load())
}

func TestModelRegistry_FailedLoadIsRetried(t *testing.T) {
	var attempts atomic.Int32
	reg, err := NewModelRegistry(func(_ context.Context, name string) (Embedder, error) {
		if attempts.Add(1) == 1 {
			return nil, errBackendDown
		}
		return newFake(name, 3), nil
	}, 2)
	require.NoError(t, err)

	_, err = reg.Get(context.Background(), "m")
	require.ErrorIs(t, err, errBackendDown)

	e, err := reg.Get(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, "m", e.ModelName())
}

func TestNewModelRegistry_RequiresLoader(t *testing.T) {
	_, err := NewModelRegistry(nil, 2)
	assert.Error(t, err)
}

func TestLocalEmbedder_DelegatesThroughRegistry(t *testing.T) {
	reg, err := NewModelRegistry(func(_ context.Context, name string) (Embedder, error) {
		return newFake(name, 5), nil
	}, 2)
	require.NoError(t, err)
	local := NewLocalEmbedder(reg, "")

	assert.Equal(t, DefaultLocalModel, local.ModelName())
	assert.Equal(t, 384, local.Dimensions()) // known size before load

	v, err := local.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, v, 5)
	assert.Equal(t, 5, local.Dimensions())
}
