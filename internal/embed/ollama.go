package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaConfig configures a local model served by Ollama.
type OllamaConfig struct {
	Host      string
	Model     string
	BatchSize int
}

// OllamaEmbedder runs a local embedding model through Ollama.
type OllamaEmbedder struct {
	embedder *embeddings.EmbedderImpl
	model    string
	dims     atomic.Int64
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder prepares a client for cfg.Model. Ollama loads the model
// on the first request, so construction does not touch the network.
func NewOllamaEmbedder(cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLocalModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.Host),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	impl, err := embeddings.NewEmbedder(llm,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(cfg.BatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}

	e := &OllamaEmbedder{
		embedder: impl,
		model:    cfg.Model,
		logger:   slog.Default().With("component", "ollama-embedder"),
	}
	e.dims.Store(int64(knownDimensions[cfg.Model]))
	return e, nil
}

// Embed generates embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, e, text)
}

// EmbedBatch embeds texts in order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.logger.Debug("embedding texts", "count", len(texts), "model", e.model)
	raw, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embed %s: %w", e.model, err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(raw), len(texts))
	}

	vectors := make([][]float32, len(raw))
	for i, v := range raw {
		vectors[i] = normalizeVector(v)
	}
	if len(vectors[0]) > 0 {
		e.dims.Store(int64(len(vectors[0])))
	}
	return vectors, nil
}

// Dimensions returns the embedding size, 0 until known.
func (e *OllamaEmbedder) Dimensions() int {
	return int(e.dims.Load())
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

// Close marks the embedder unusable. Ollama unloads idle models by itself.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}
