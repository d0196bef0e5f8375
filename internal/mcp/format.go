package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/smarthr/internal/search"
)

// FormatHits renders retrieval hits as markdown for AI clients.
func FormatHits(query string, hits []search.RetrievalHit) string {
	var sb strings.Builder

	if len(hits) == 0 {
		fmt.Fprintf(&sb, "No policy passages found for: %q\n", query)
		return sb.String()
	}

	fmt.Fprintf(&sb, "## Policy passages for: %q\n\n", query)
	fmt.Fprintf(&sb, "Found %d passages.\n\n", len(hits))

	for i, h := range hits {
		formatHit(&sb, i+1, h)
	}

	return sb.String()
}

func formatHit(sb *strings.Builder, num int, h search.RetrievalHit) {
	fmt.Fprintf(sb, "### %d. %s (score: %.3f)\n\n", num, h.Source, h.Score)

	meta := []string{fmt.Sprintf("**Policy:** %s", h.PolicyID)}
	if h.Section != "" {
		meta = append(meta, fmt.Sprintf("**Section:** %s", h.Section))
	}
	if h.EffectiveFrom != "" {
		meta = append(meta, fmt.Sprintf("**Effective:** %s", h.EffectiveFrom))
	}
	sb.WriteString(strings.Join(meta, " | "))
	sb.WriteString("\n\n")

	for _, line := range strings.Split(strings.TrimSpace(h.Text), "\n") {
		fmt.Fprintf(sb, "> %s\n", line)
	}
	sb.WriteString("\n")
}

// clampLimit applies default and bounds to the limit parameter.
func clampLimit(limit, defaultVal, lo, hi int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < lo {
		return lo
	}
	if limit > hi {
		return hi
	}
	return limit
}

// toHitOutputs converts hits to the tool output schema. Never nil.
func toHitOutputs(hits []search.RetrievalHit) []HitOutput {
	out := make([]HitOutput, 0, len(hits))
	for _, h := range hits {
		out = append(out, HitOutput{
			Source:        h.Source,
			Text:          h.Text,
			Score:         h.Score,
			PolicyID:      h.PolicyID,
			Section:       h.Section,
			EffectiveFrom: h.EffectiveFrom,
			DenseScore:    h.DenseScore,
			LexicalScore:  h.LexicalScore,
		})
	}
	return out
}
