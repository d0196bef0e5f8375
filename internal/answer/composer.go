// Package answer composes a grounded, citation-bearing answer from retrieved
// policy passages.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/smarthr/internal/search"
)

// Style selects how the answer body is written.
type Style string

const (
	// StyleBullets lists the top snippets, shortened (default).
	StyleBullets Style = "bullets"

	// StyleParagraph stitches informative sentences from the top snippets.
	StyleParagraph Style = "paragraph"

	// StyleLLM asks a chat model for a short paragraph with [n] citations.
	StyleLLM Style = "llm"
)

// ParseStyle validates a style name. Empty selects bullets.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StyleBullets, "":
		return StyleBullets, nil
	case StyleParagraph:
		return StyleParagraph, nil
	case StyleLLM:
		return StyleLLM, nil
	default:
		return "", fmt.Errorf("unknown answer style: %s (valid options: bullets, paragraph, llm)", s)
	}
}

// NoMatchMessage is shown instead of a body when retrieval found nothing.
const NoMatchMessage = "_Sorry, I couldn't find a matching policy. Try adding role/region or keywords._"

// llmFallbackNote is appended when the chat model could not be used.
const llmFallbackNote = "_(LLM unavailable; falling back to snippet-based paragraph.)_"

// Generator writes an answer from numbered snippets.
type Generator interface {
	Generate(ctx context.Context, query string, snippets []string) (string, error)
}

// Composer renders answers. The generator is only used for StyleLLM and
// may be nil, in which case llm answers fall back to paragraph.
type Composer struct {
	generator Generator
	logger    *slog.Logger
}

// NewComposer creates a Composer.
func NewComposer(generator Generator) *Composer {
	return &Composer{
		generator: generator,
		logger:    slog.Default().With("component", "answer"),
	}
}

// Compose returns the markdown answer:
//
//	**Question:** <query>
//
//	<body>
//
//	**Sources:**
//	- [1] <source> (effective <date>)
func (c *Composer) Compose(ctx context.Context, query string, hits []search.RetrievalHit, style Style) string {
	if len(hits) == 0 {
		return fmt.Sprintf("**Question:** %s\n\n%s", query, NoMatchMessage)
	}

	var body string
	switch style {
	case StyleParagraph:
		body = Paragraph(hits, maxSentences)
	case StyleLLM:
		body = c.llm(ctx, query, hits)
	default:
		body = Bullets(hits, maxPoints)
	}

	return fmt.Sprintf("**Question:** %s\n\n%s\n\n**Sources:**\n%s", query, body, Sources(hits))
}

func (c *Composer) llm(ctx context.Context, query string, hits []search.RetrievalHit) string {
	if c.generator == nil {
		return Paragraph(hits, maxSentences) + "\n\n" + llmFallbackNote
	}

	snippets := make([]string, 0, maxSnippets)
	for _, h := range hits[:min(len(hits), maxSnippets)] {
		snippets = append(snippets, h.Text)
	}

	body, err := c.generator.Generate(ctx, query, snippets)
	if err == nil {
		body = strings.TrimSpace(body)
	}
	if err != nil || body == "" {
		if err == nil {
			err = fmt.Errorf("empty completion")
		}
		c.logger.Warn("answer_llm_fallback", slog.String("error", err.Error()))
		return Paragraph(hits, maxSentences) + "\n\n" + llmFallbackNote
	}
	return body
}

// Sources lists every hit as "- [i] source (effective date)".
func Sources(hits []search.RetrievalHit) string {
	lines := make([]string, len(hits))
	for i, h := range hits {
		effective := h.EffectiveFrom
		if effective == "" {
			effective = "n/a"
		}
		lines[i] = fmt.Sprintf("- [%d] %s (effective %s)", i+1, h.Source, effective)
	}
	return strings.Join(lines, "\n")
}
