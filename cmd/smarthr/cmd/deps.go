package cmd

import (
	"log/slog"

	"github.com/Aman-CERP/smarthr/internal/answer"
	"github.com/Aman-CERP/smarthr/internal/config"
	"github.com/Aman-CERP/smarthr/internal/embed"
	"github.com/Aman-CERP/smarthr/internal/index"
	"github.com/Aman-CERP/smarthr/internal/search"
)

// newEmbedChain returns the provider chain, or nil when the dense signal is
// disabled in config.
func newEmbedChain(cfg *config.Config) (*embed.Chain, error) {
	if !cfg.Search.DenseEnabled {
		slog.Debug("dense_disabled_by_config")
		return nil, nil
	}
	return embed.NewChainFromOptions(cfg.EmbedOptions(), nil)
}

// newHandle creates the lazily loaded index handle for queries.
func newHandle(cfg *config.Config) (*index.Handle, error) {
	chain, err := newEmbedChain(cfg)
	if err != nil {
		return nil, err
	}

	// A nil *Chain must not become a non-nil interface.
	var embedder search.QueryEmbedder
	if chain != nil {
		embedder = chain
	}

	return index.NewHandle(index.HandleConfig{
		Dir:            cfg.IndexDir(),
		LexicalBackend: cfg.Search.LexicalBackend,
		VectorBackend:  cfg.Search.VectorBackend,
		Engine:         cfg.EngineConfig(),
	}, embedder), nil
}

// newComposer wires the chat generator when an API key is configured.
// Without one, llm answers fall back to the paragraph style.
func newComposer(cfg *config.Config) *answer.Composer {
	if cfg.Embeddings.APIKey == "" {
		return answer.NewComposer(nil)
	}
	gen, err := answer.NewOpenAIGenerator(answer.OpenAIConfig{
		APIKey:  cfg.Embeddings.APIKey,
		BaseURL: cfg.Embeddings.OpenAIBaseURL,
		Model:   cfg.Answer.GenModel,
		Timeout: cfg.Embeddings.Timeout,
	})
	if err != nil {
		slog.Warn("llm_generator_unavailable", slog.String("error", err.Error()))
		return answer.NewComposer(nil)
	}
	return answer.NewComposer(gen)
}
