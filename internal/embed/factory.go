package embed

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
)

// ProviderType selects the primary embedding provider.
type ProviderType string

const (
	// ProviderOpenAI uses the hosted API first, then the local model.
	ProviderOpenAI ProviderType = "openai"

	// ProviderLocal uses only the local model served by Ollama.
	ProviderLocal ProviderType = "local"

	// ProviderStatic uses hash embeddings (offline, deterministic).
	ProviderStatic ProviderType = "static"
)

// ParseProvider maps a configured provider name to a ProviderType.
// "st", "ollama" and "sentence-transformers" are accepted for the local model.
func ParseProvider(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return ProviderOpenAI, nil
	case "", "local", "st", "ollama", "sentence-transformers":
		return ProviderLocal, nil
	case "static":
		return ProviderStatic, nil
	default:
		return "", fmt.Errorf("unknown embeddings provider: %s (valid options: openai, local, static)", s)
	}
}

// Options configures the embedder chain.
type Options struct {
	Provider      string
	Model         string // hosted model
	LocalModel    string
	OllamaHost    string
	OpenAIBaseURL string
	APIKey        string
	Timeout       time.Duration
	BatchSize     int
	CacheSize     int // query cache entries; 0 disables caching
}

// NewChainFromOptions assembles the ordered fallback chain:
//
//	openai: hosted (only when an API key is set) -> local
//	local:  local
//	static: static
//
// The registry may be shared across chains; nil creates an Ollama registry.
func NewChainFromOptions(opts Options, registry *ModelRegistry) (*Chain, error) {
	provider, err := ParseProvider(opts.Provider)
	if err != nil {
		return nil, hrerrors.ConfigError(err.Error(), err)
	}

	var strategies []Strategy

	if provider == ProviderStatic {
		strategies = append(strategies, Strategy{Name: string(ProviderStatic), Embedder: wrapCache(NewStaticEmbedder(), opts.CacheSize)})
		return NewChain(opts.Timeout, strategies...), nil
	}

	if provider == ProviderOpenAI {
		if opts.APIKey == "" {
			slog.Debug("openai_embedder_skipped", slog.String("reason", "no api key"))
		} else {
			hosted, err := NewOpenAIEmbedder(OpenAIConfig{
				APIKey:  opts.APIKey,
				BaseURL: opts.OpenAIBaseURL,
				Model:   opts.Model,
			})
			if err != nil {
				return nil, err
			}
			strategies = append(strategies, Strategy{
				Name:     string(ProviderOpenAI),
				Embedder: wrapCache(hosted, opts.CacheSize),
				Breaker:  hrerrors.NewCircuitBreaker("openai-embeddings"),
			})
		}
	}

	if registry == nil {
		registry, err = NewOllamaRegistry(opts.OllamaHost, opts.BatchSize)
		if err != nil {
			return nil, err
		}
	}
	strategies = append(strategies, Strategy{
		Name:     string(ProviderLocal),
		Embedder: wrapCache(NewLocalEmbedder(registry, opts.LocalModel), opts.CacheSize),
		Breaker:  hrerrors.NewCircuitBreaker("local-embeddings"),
	})

	return NewChain(opts.Timeout, strategies...), nil
}

func wrapCache(e Embedder, size int) Embedder {
	if size <= 0 {
		return e
	}
	return NewCachedEmbedder(e, size)
}
