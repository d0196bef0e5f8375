package preflight

import (
	"context"
	"fmt"
	"strings"
)

// probeText is embedded to confirm a provider answers.
const probeText = "annual leave entitlement"

// CheckEmbedder probes the provider chain with one short text.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{
		Name: "embeddings",
	}

	if c.embedder == nil {
		result.Status = StatusWarn
		result.Message = "dense retrieval disabled; queries use BM25 only"
		return result
	}
	result.Details = "providers: " + strings.Join(c.embedder.Strategies(), ", ")

	if c.offline {
		result.Status = StatusPass
		result.Message = "skipped (offline)"
		return result
	}

	vec, provider, ok := c.embedder.ResolveOne(ctx, probeText)
	if !ok {
		result.Status = StatusWarn
		result.Message = "no provider reachable; queries fall back to BM25"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s, %d dimensions", provider, len(vec))
	return result
}
