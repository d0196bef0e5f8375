package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
)

// DefaultGenModel is the chat model used for llm answers.
const DefaultGenModel = "gpt-4o-mini"

const (
	defaultTemperature = 0.2
	defaultGenTimeout  = 30 * time.Second
)

var errEmptyCompletion = errors.New("empty chat completion")

// OpenAIConfig configures the chat generator.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional, for OpenAI-compatible hosts
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator writes answers with an OpenAI chat model. Repeated
// failures open a circuit breaker so later questions fall back immediately.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	breaker *hrerrors.CircuitBreaker
}

var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates a generator. It never dials.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, hrerrors.ConfigError("llm answers require an OpenAI API key", nil).
			WithSuggestion("Set OPENAI_API_KEY or choose --style bullets")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGenModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGenTimeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		breaker: hrerrors.NewCircuitBreaker("answer-llm"),
	}, nil
}

// Generate asks for a 4-6 sentence answer citing the numbered snippets.
func (g *OpenAIGenerator) Generate(ctx context.Context, query string, snippets []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return hrerrors.Guard(g.breaker, func() (string, error) {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Temperature: defaultTemperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(query, snippets)},
			},
		})
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errEmptyCompletion
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// BuildPrompt numbers the snippets 1..n under the instructions.
func BuildPrompt(query string, snippets []string) string {
	var b strings.Builder
	b.WriteString("You are an HR policy assistant. Write a concise 4-6 sentence answer to the question. ")
	b.WriteString("Use only the snippets provided and add bracketed citations like [1], [2] that refer to the numbered snippets. ")
	b.WriteString("Do not invent facts. Keep it clear and neutral.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nSnippets:\n", query)
	for i, s := range snippets {
		fmt.Fprintf(&b, "%d) %s\n", i+1, s)
	}
	return strings.TrimRight(b.String(), "\n")
}
