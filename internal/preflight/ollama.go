package preflight

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/smarthr/internal/lifecycle"
)

// WithOllama adds a check that the local model is pulled on m.
func WithOllama(m *lifecycle.OllamaManager, model string) Option {
	return func(c *Checker) {
		c.ollama = m
		c.localModel = model
	}
}

// CheckOllama reports whether the local embedding model can be served.
// It never fails hard: without Ollama the chain falls back to BM25.
func (c *Checker) CheckOllama(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:    "ollama",
		Details: c.ollama.Host(),
	}

	status, err := c.ollama.Status(ctx, c.localModel)
	switch {
	case err != nil:
		result.Status = StatusWarn
		result.Message = err.Error()
	case !status.Running && !status.Installed && !c.ollama.IsRemoteHost():
		result.Status = StatusWarn
		result.Message = "not installed; run 'smarthr setup' for instructions"
	case !status.Running:
		result.Status = StatusWarn
		result.Message = "not running at " + status.Host
	case !status.HasModel:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("model %s not pulled; run 'smarthr setup'", c.localModel)
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s available", c.localModel)
	}
	return result
}
