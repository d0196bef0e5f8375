package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
)

// Strategy is one step of the fallback chain.
type Strategy struct {
	// Name identifies the provider in logs and outcomes ("openai", "local").
	Name string

	// Embedder does the work.
	Embedder Embedder

	// Breaker, when set, skips the strategy after repeated failures.
	Breaker *hrerrors.CircuitBreaker
}

// Outcome is the typed result of resolving embeddings through a chain.
// Available is false when every strategy failed; Vectors is then nil.
type Outcome struct {
	Vectors   [][]float32
	Provider  string
	Available bool
}

// Chain tries strategies in order until one produces usable vectors.
// It never returns an error: exhausting the chain yields an unavailable
// outcome and callers continue without the dense signal.
type Chain struct {
	strategies []Strategy
	timeout    time.Duration
	logger     *slog.Logger
}

// NewChain creates a chain. timeout bounds each strategy attempt; zero
// means DefaultTimeout.
func NewChain(timeout time.Duration, strategies ...Strategy) *Chain {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Chain{
		strategies: strategies,
		timeout:    timeout,
		logger:     slog.Default().With("component", "embed-chain"),
	}
}

// Strategies returns the provider names in order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name
	}
	return names
}

// Resolve embeds texts with the first strategy that succeeds.
func (c *Chain) Resolve(ctx context.Context, texts []string) Outcome {
	if len(texts) == 0 || c == nil {
		return Outcome{}
	}

	for _, s := range c.strategies {
		if ctx.Err() != nil {
			break
		}
		vectors, err := c.attempt(ctx, s, texts)
		if err == nil {
			return Outcome{Vectors: vectors, Provider: s.Name, Available: true}
		}
		c.logger.Warn("embedding_provider_failed",
			hrerrors.LogAttrs(hrerrors.ProviderFailure(s.Name, err))...)
	}

	c.logger.Warn("embeddings_unavailable", slog.Int("texts", len(texts)))
	return Outcome{}
}

// ResolveOne embeds a single query text.
func (c *Chain) ResolveOne(ctx context.Context, text string) ([]float32, string, bool) {
	out := c.Resolve(ctx, []string{text})
	if !out.Available {
		return nil, "", false
	}
	return out.Vectors[0], out.Provider, true
}

func (c *Chain) attempt(ctx context.Context, s Strategy, texts []string) (vectors [][]float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			vectors, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vectors, err = hrerrors.Guard(s.Breaker, func() ([][]float32, error) {
		out, err := s.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		return out, validateBatch(out, len(texts))
	})
	if err != nil {
		return nil, err
	}

	for i := range vectors {
		vectors[i] = normalizeVector(vectors[i])
	}
	return vectors, nil
}

// validateBatch checks the row count and that all rows share one dimension.
func validateBatch(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("got %d vectors for %d texts", len(vectors), want)
	}
	if want == 0 {
		return nil
	}
	d := len(vectors[0])
	if d == 0 {
		return fmt.Errorf("empty embedding vector")
	}
	for i, v := range vectors {
		if len(v) != d {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), d)
		}
	}
	return nil
}
