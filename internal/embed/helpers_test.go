package embed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// fakeEmbedder returns fixed vectors and counts calls.
type fakeEmbedder struct {
	name   string
	dims   int
	err    error
	calls  atomic.Int32
	closed atomic.Bool

	mu   sync.Mutex
	seen []string
}

func newFake(name string, dims int) *fakeEmbedder {
	return &fakeEmbedder{name: name, dims: dims}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, f, text)
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, texts...)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dims)
		v[i%f.dims] = 2
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int   { return f.dims }
func (f *fakeEmbedder) ModelName() string { return f.name }
func (f *fakeEmbedder) Close() error      { f.closed.Store(true); return nil }

var errBackendDown = errors.New("backend down")
