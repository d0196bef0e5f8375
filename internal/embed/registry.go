package embed

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultRegistrySize bounds how many local models stay loaded at once.
const DefaultRegistrySize = 2

// ModelLoader creates a local embedding model by name.
type ModelLoader func(ctx context.Context, name string) (Embedder, error)

// ModelRegistry loads local models lazily, once per distinct name, and keeps
// the most recently used ones. Concurrent first requests for the same name
// share one load. Evicted models are closed.
type ModelRegistry struct {
	load  ModelLoader
	cache *lru.Cache[string, Embedder]
	group singleflight.Group
}

// NewModelRegistry creates a registry holding at most size models.
func NewModelRegistry(load ModelLoader, size int) (*ModelRegistry, error) {
	if load == nil {
		return nil, fmt.Errorf("model registry requires a loader")
	}
	if size <= 0 {
		size = DefaultRegistrySize
	}
	cache, err := lru.NewWithEvict[string, Embedder](size, func(name string, e Embedder) {
		slog.Debug("local_model_evicted", slog.String("model", name))
		_ = e.Close()
	})
	if err != nil {
		return nil, err
	}
	return &ModelRegistry{load: load, cache: cache}, nil
}

// NewOllamaRegistry returns a registry whose models are served by Ollama.
func NewOllamaRegistry(host string, batchSize int) (*ModelRegistry, error) {
	return NewModelRegistry(func(_ context.Context, name string) (Embedder, error) {
		return NewOllamaEmbedder(OllamaConfig{Host: host, Model: name, BatchSize: batchSize})
	}, DefaultRegistrySize)
}

// Get returns the model for name, loading it on first use.
// A failed load is not cached; the next call tries again.
func (r *ModelRegistry) Get(ctx context.Context, name string) (Embedder, error) {
	if e, ok := r.cache.Get(name); ok {
		return e, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		if e, ok := r.cache.Get(name); ok {
			return e, nil
		}
		e, err := r.load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load local model %s: %w", name, err)
		}
		r.cache.Add(name, e)
		slog.Debug("local_model_loaded", slog.String("model", name))
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Embedder), nil
}

// Loaded returns the names of the models currently held, oldest first.
func (r *ModelRegistry) Loaded() []string {
	return r.cache.Keys()
}

// Close closes every held model.
func (r *ModelRegistry) Close() error {
	r.cache.Purge()
	return nil
}

// LocalEmbedder resolves its model through a registry on every call, so the
// model is only loaded when a query actually needs it.
type LocalEmbedder struct {
	registry *ModelRegistry
	model    string
}

var _ Embedder = (*LocalEmbedder)(nil)

// NewLocalEmbedder binds a model name to a registry.
func NewLocalEmbedder(registry *ModelRegistry, model string) *LocalEmbedder {
	if model == "" {
		model = DefaultLocalModel
	}
	return &LocalEmbedder{registry: registry, model: model}
}

// Embed generates embedding for a single text.
func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, l, text)
}

// EmbedBatch embeds with the registered model.
func (l *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e, err := l.registry.Get(ctx, l.model)
	if err != nil {
		return nil, err
	}
	return e.EmbedBatch(ctx, texts)
}

// Dimensions reports the loaded model's size, or the known size for the name.
func (l *LocalEmbedder) Dimensions() int {
	if e, ok := l.registry.cache.Peek(l.model); ok {
		return e.Dimensions()
	}
	return knownDimensions[l.model]
}

// ModelName returns the model identifier.
func (l *LocalEmbedder) ModelName() string {
	return l.model
}

// Close is a no-op; the registry owns the model.
func (l *LocalEmbedder) Close() error {
	return nil
}
