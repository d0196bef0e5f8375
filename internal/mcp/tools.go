package mcp

import (
	"time"

	"github.com/Aman-CERP/smarthr/internal/async"
	"github.com/Aman-CERP/smarthr/internal/telemetry"
)

// Tool names.
const (
	ToolHybridSearch = "hybrid_search"
	ToolAskPolicy    = "ask_policy"
	ToolIndexStatus  = "index_status"
)

// HybridSearchInput defines the input schema for the hybrid_search tool.
type HybridSearchInput struct {
	Query string `json:"query" jsonschema:"the HR policy question or keywords to search for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of passages, default 6"`
}

// HybridSearchOutput defines the output schema for the hybrid_search tool.
type HybridSearchOutput struct {
	Query   string      `json:"query"`
	Results []HitOutput `json:"results" jsonschema:"passages ordered by descending fused score"`
}

// HitOutput is one retrieved passage.
type HitOutput struct {
	Source        string  `json:"source" jsonschema:"citation for the passage"`
	Text          string  `json:"text" jsonschema:"passage text"`
	Score         float64 `json:"score" jsonschema:"fused relevance score between 0 and 1"`
	PolicyID      string  `json:"policy_id"`
	Section       string  `json:"section"`
	EffectiveFrom string  `json:"effective_from,omitempty"`
	DenseScore    float64 `json:"dense_score" jsonschema:"normalized dense similarity"`
	LexicalScore  float64 `json:"lexical_score" jsonschema:"normalized BM25 score"`
}

// AskPolicyInput defines the input schema for the ask_policy tool.
type AskPolicyInput struct {
	Query string `json:"query" jsonschema:"the HR policy question to answer"`
	Style string `json:"style,omitempty" jsonschema:"answer style: bullets, paragraph or llm"`
}

// AskPolicyOutput defines the output schema for the ask_policy tool.
type AskPolicyOutput struct {
	Answer  string      `json:"answer" jsonschema:"markdown answer with numbered sources"`
	Style   string      `json:"style"`
	Sources []HitOutput `json:"sources"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Index      IndexInfo     `json:"index"`
	Search     SearchInfo    `json:"search"`
	Embeddings EmbeddingInfo `json:"embeddings"`
	Queries    QueryStats    `json:"queries"`

	// Rebuild is set when serve watches the policy folder.
	Rebuild *async.ProgressSnapshot `json:"rebuild,omitempty"`
}

// IndexInfo describes the loaded index.
type IndexInfo struct {
	Ready      bool   `json:"ready"`
	Dir        string `json:"dir"`
	Passages   int    `json:"passages"`
	Dimensions int    `json:"dimensions"`
	Dense      bool   `json:"dense" jsonschema:"true when the vector index can serve the dense signal"`
	LoadedAt   string `json:"loaded_at,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SearchInfo describes the fusion settings.
type SearchInfo struct {
	TopK           int     `json:"top_k"`
	DenseWeight    float64 `json:"dense_weight"`
	LexicalWeight  float64 `json:"lexical_weight"`
	LexicalBackend string  `json:"lexical_backend"`
	VectorBackend  string  `json:"vector_backend"`
}

// EmbeddingInfo contains information about the embedding configuration.
type EmbeddingInfo struct {
	Enabled    bool   `json:"enabled"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	LocalModel string `json:"local_model"`
}

// QueryStats summarizes the queries served since the server started.
type QueryStats struct {
	Total             int64    `json:"total"`
	Failed            int64    `json:"failed"`
	ZeroResult        int64    `json:"zero_result"`
	Hybrid            int64    `json:"hybrid" jsonschema:"queries answered with both signals"`
	LexicalOnly       int64    `json:"lexical_only" jsonschema:"queries answered without the dense signal"`
	RepeatRate        float64  `json:"repeat_rate"`
	TopTerms          []string `json:"top_terms"`
	RecentZeroResults []string `json:"recent_zero_results"`
	Since             string   `json:"since"`
}

func newQueryStats(snap *telemetry.Snapshot) QueryStats {
	terms := make([]string, len(snap.TopTerms))
	for i, tc := range snap.TopTerms {
		terms[i] = tc.Term
	}
	return QueryStats{
		Total:             snap.TotalQueries,
		Failed:            snap.FailedQueries,
		ZeroResult:        snap.ZeroResultCount,
		Hybrid:            snap.ModeCounts[telemetry.ModeHybrid],
		LexicalOnly:       snap.ModeCounts[telemetry.ModeLexical],
		RepeatRate:        snap.ExactRepeatRate,
		TopTerms:          terms,
		RecentZeroResults: snap.ZeroResultQueries,
		Since:             snap.Since.Format(time.RFC3339),
	}
}
