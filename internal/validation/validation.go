// Package validation runs golden policy questions against the MCP tools
// and scores where the expected policies land in the results.
//
// Queries are data-driven, loaded from a YAML file (eval/queries.yaml by
// default), so they can change without rebuilding smarthr.
package validation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/mcp"
)

// DefaultLimit is the number of hits requested per query.
const DefaultLimit = 10

// QuerySpec defines a golden query with expected results.
type QuerySpec struct {
	ID       string   `yaml:"id" json:"id"`             // e.g. "T1-Q3"
	Name     string   `yaml:"name" json:"name"`         // human-readable name
	Query    string   `yaml:"query" json:"query"`       // the question
	Tool     string   `yaml:"tool" json:"tool"`         // hybrid_search (default) or ask_policy
	Expected []string `yaml:"expected" json:"expected"` // policy IDs or source prefixes
	Notes    string   `yaml:"notes" json:"notes,omitempty"`
	Tier     int      `yaml:"-" json:"tier"` // set from the section
}

// QueryConfig holds all queries loaded from YAML.
type QueryConfig struct {
	Tier1    []QuerySpec `yaml:"tier1"`
	Tier2    []QuerySpec `yaml:"tier2"`
	Negative []QuerySpec `yaml:"negative"`
}

// Count returns the number of queries across all tiers.
func (c *QueryConfig) Count() int {
	return len(c.Tier1) + len(c.Tier2) + len(c.Negative)
}

// LoadQueries reads a query file. Unknown keys are rejected and every
// positive query must name at least one expected policy.
func LoadQueries(path string) (*QueryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, hrerrors.New(hrerrors.ErrCodeFileNotFound,
				fmt.Sprintf("query file not found: %s", path), err).
				WithSuggestion("Create it with tier1, tier2 and negative query lists")
		}
		return nil, fmt.Errorf("failed to read queries file %s: %w", path, err)
	}
	return ParseQueries(data)
}

// ParseQueries decodes query YAML and assigns tiers.
func ParseQueries(data []byte) (*QueryConfig, error) {
	var cfg QueryConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, hrerrors.ValidationError(fmt.Sprintf("failed to parse queries YAML: %v", err), err)
	}

	for i := range cfg.Tier1 {
		cfg.Tier1[i].Tier = 1
	}
	for i := range cfg.Tier2 {
		cfg.Tier2[i].Tier = 2
	}
	for i := range cfg.Negative {
		cfg.Negative[i].Tier = 0
	}

	for _, spec := range append(append([]QuerySpec{}, cfg.Tier1...), cfg.Tier2...) {
		if strings.TrimSpace(spec.Query) == "" {
			return nil, hrerrors.ValidationError(fmt.Sprintf("query %q has no query text", spec.ID), nil)
		}
		if len(spec.Expected) == 0 {
			return nil, hrerrors.ValidationError(fmt.Sprintf("query %q has no expected policies", spec.ID), nil)
		}
	}
	return &cfg, nil
}

// ToolCaller invokes an MCP tool in-process. *mcp.Server implements it.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
}

var _ ToolCaller = (*mcp.Server)(nil)

// TestResult captures the outcome of a single query.
type TestResult struct {
	Spec       QuerySpec     `json:"spec"`
	Passed     bool          `json:"passed"`
	Duration   time.Duration `json:"duration_ns"`
	TopResults []string      `json:"top_results"` // sources, best first
	MatchedAt  int           `json:"matched_at"`  // 0-based rank of first match, -1 if not found
	Error      string        `json:"error,omitempty"`
}

// ReciprocalRank is 1/(rank+1) for a match, 0 otherwise.
func (r TestResult) ReciprocalRank() float64 {
	if r.MatchedAt < 0 {
		return 0
	}
	return 1 / float64(r.MatchedAt+1)
}

// TierSummary aggregates one tier.
type TierSummary struct {
	Pass  int     `json:"pass"`
	Total int     `json:"total"`
	MRR   float64 `json:"mrr"`
}

// PassRate is Pass/Total as a percentage, 0 for an empty tier.
func (s TierSummary) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Pass) / float64(s.Total) * 100
}

// ValidationResult captures a full run.
type ValidationResult struct {
	Timestamp      time.Time    `json:"timestamp"`
	Tier1          []TestResult `json:"tier1"`
	Tier2          []TestResult `json:"tier2"`
	Negative       []TestResult `json:"negative"`
	Tier1Summary   TierSummary  `json:"tier1_summary"`
	Tier2Summary   TierSummary  `json:"tier2_summary"`
	NegativeSummary TierSummary  `json:"negative_summary"`
}

// Failed lists every result that did not pass.
func (v *ValidationResult) Failed() []TestResult {
	var failed []TestResult
	for _, group := range [][]TestResult{v.Tier1, v.Tier2, v.Negative} {
		for _, r := range group {
			if !r.Passed {
				failed = append(failed, r)
			}
		}
	}
	return failed
}

// Validator runs queries through a ToolCaller.
type Validator struct {
	server ToolCaller
	limit  int
}

// NewValidator wraps server. A limit <= 0 uses DefaultLimit.
func NewValidator(server ToolCaller, limit int) *Validator {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Validator{server: server, limit: limit}
}

// RunQuery executes a single query and returns the result.
func (v *Validator) RunQuery(ctx context.Context, spec QuerySpec) TestResult {
	start := time.Now()
	result := TestResult{
		Spec:      spec,
		MatchedAt: -1,
	}

	tool := spec.Tool
	if tool == "" {
		tool = mcp.ToolHybridSearch
	}
	args := map[string]any{"query": spec.Query}
	if tool == mcp.ToolHybridSearch {
		args["limit"] = v.limit
	}

	resp, err := v.server.CallTool(ctx, tool, args)
	result.Duration = time.Since(start)

	if err != nil {
		// Negative queries only need to not crash.
		if spec.Tier == 0 {
			result.Passed = true
		} else {
			result.Error = err.Error()
		}
		return result
	}

	hits := extractHits(resp)
	for _, h := range hits {
		result.TopResults = append(result.TopResults, h.Source)
	}

	if len(spec.Expected) == 0 {
		result.Passed = true
	} else {
		result.MatchedAt = checkExpected(hits, spec.Expected)
		result.Passed = result.MatchedAt >= 0
	}
	return result
}

// RunAll executes every query in cfg, tier by tier.
func (v *Validator) RunAll(ctx context.Context, cfg *QueryConfig) *ValidationResult {
	result := &ValidationResult{Timestamp: time.Now()}
	result.Tier1, result.Tier1Summary = v.runTier(ctx, cfg.Tier1)
	result.Tier2, result.Tier2Summary = v.runTier(ctx, cfg.Tier2)
	result.Negative, result.NegativeSummary = v.runTier(ctx, cfg.Negative)
	return result
}

func (v *Validator) runTier(ctx context.Context, specs []QuerySpec) ([]TestResult, TierSummary) {
	var (
		results []TestResult
		sum     TierSummary
		rr      float64
	)
	for _, spec := range specs {
		tr := v.RunQuery(ctx, spec)
		results = append(results, tr)
		sum.Total++
		if tr.Passed {
			sum.Pass++
		}
		rr += tr.ReciprocalRank()
	}
	if sum.Total > 0 {
		sum.MRR = rr / float64(sum.Total)
	}
	return results, sum
}

// extractHits pulls the ranked passages out of a tool response.
func extractHits(resp any) []mcp.HitOutput {
	switch out := resp.(type) {
	case *mcp.HybridSearchOutput:
		return out.Results
	case *mcp.AskPolicyOutput:
		return out.Sources
	default:
		return nil
	}
}

// checkExpected returns the rank of the first hit whose policy ID equals an
// expected entry or whose source contains it, or -1.
func checkExpected(hits []mcp.HitOutput, expected []string) int {
	for i, h := range hits {
		for _, exp := range expected {
			if h.PolicyID == exp || strings.HasPrefix(h.Source, exp) || strings.Contains(h.Source, exp) {
				return i
			}
		}
	}
	return -1
}
