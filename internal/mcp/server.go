package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/smarthr/internal/answer"
	"github.com/Aman-CERP/smarthr/internal/async"
	"github.com/Aman-CERP/smarthr/internal/config"
	"github.com/Aman-CERP/smarthr/internal/index"
	"github.com/Aman-CERP/smarthr/internal/search"
	"github.com/Aman-CERP/smarthr/internal/store"
	"github.com/Aman-CERP/smarthr/internal/telemetry"
	"github.com/Aman-CERP/smarthr/pkg/version"
)

// Backend is what the server queries. *index.Handle implements it.
type Backend interface {
	search.Searcher
	Status() index.Status
	Passage(ctx context.Context, policyID, section string) (store.Passage, bool, error)
}

var _ Backend = (*index.Handle)(nil)

// Server is the MCP server for smarthr.
// It exposes policy retrieval and answering to AI clients.
type Server struct {
	mcp      *mcp.Server
	backend  Backend
	composer *answer.Composer
	config   *config.Config
	metrics  *telemetry.QueryMetrics
	rebuild  *async.Progress
	logger   *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        ToolHybridSearch,
		Description: "Search HR policy passages with hybrid BM25 and semantic retrieval. Returns the best matching passages with their sources, effective dates and scores.",
	},
	{
		Name:        ToolAskPolicy,
		Description: "Answer an HR policy question from the indexed policies. Returns a short markdown answer with numbered source citations.",
	},
	{
		Name:        ToolIndexStatus,
		Description: "Check whether the policy index is loaded, how many passages it holds and whether the dense signal is active.",
	},
}

// NewServer creates a new MCP server. A nil composer answers with
// snippet styles only.
func NewServer(backend Backend, composer *answer.Composer, cfg *config.Config) (*Server, error) {
	if backend == nil {
		return nil, errors.New("search backend is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if composer == nil {
		composer = answer.NewComposer(nil)
	}

	s := &Server{
		backend:  backend,
		composer: composer,
		config:   cfg,
		metrics:  telemetry.NewQueryMetrics(telemetry.DefaultConfig()),
		logger:   slog.Default().With("component", "mcp"),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    version.Name,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// SetRebuildProgress makes index_status report background rebuilds.
func (s *Server) SetRebuildProgress(p *async.Progress) {
	s.rebuild = p
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolHybridSearch, Description: tools[0].Description}, s.mcpHybridSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolAskPolicy, Description: tools[1].Description}, s.mcpAskPolicyHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolIndexStatus, Description: tools[2].Description}, s.mcpIndexStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// CallTool invokes a tool by name with decoded arguments. It serves
// in-process callers and tests; MCP clients go through the SDK handlers.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolHybridSearch:
		in := HybridSearchInput{Query: stringArg(args, "query"), Limit: intArg(args, "limit")}
		out, _, err := s.handleHybridSearch(ctx, in)
		return out, err
	case ToolAskPolicy:
		in := AskPolicyInput{Query: stringArg(args, "query"), Style: stringArg(args, "style")}
		return s.handleAskPolicy(ctx, in)
	case ToolIndexStatus:
		return s.handleIndexStatus(), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// handleHybridSearch returns the structured hits and their markdown form.
func (s *Server) handleHybridSearch(ctx context.Context, in HybridSearchInput) (*HybridSearchOutput, string, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, "", NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	start := time.Now()
	requestID := uuid.NewString()
	limit := clampLimit(in.Limit, s.config.Search.TopK, 1, search.DefaultConfig().MaxTopK)

	s.logger.Info("hybrid_search_started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("limit", limit))

	res, err := s.backend.Search(ctx, query, search.SearchOptions{Limit: limit})
	duration := time.Since(start)
	s.record(ToolHybridSearch, query, res, duration, err)
	if err != nil {
		s.logger.Error("hybrid_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, "", MapError(err)
	}

	s.logger.Info("hybrid_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(res.Hits)),
		slog.Bool("dense_used", res.Explain.DenseUsed))

	out := &HybridSearchOutput{Query: query, Results: toHitOutputs(res.Hits)}
	return out, FormatHits(query, res.Hits), nil
}

func (s *Server) handleAskPolicy(ctx context.Context, in AskPolicyInput) (*AskPolicyOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	styleName := in.Style
	if styleName == "" {
		styleName = s.config.AnswerStyle()
	}
	style, err := answer.ParseStyle(styleName)
	if err != nil {
		return nil, NewInvalidParamsError(err.Error())
	}

	start := time.Now()
	requestID := uuid.NewString()
	s.logger.Info("ask_policy_started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.String("style", string(style)))

	res, err := s.backend.Search(ctx, query, search.SearchOptions{})
	s.record(ToolAskPolicy, query, res, time.Since(start), err)
	if err != nil {
		s.logger.Error("ask_policy_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	hits := res.Hits
	body := s.composer.Compose(ctx, query, hits, style)
	s.logger.Info("ask_policy_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("source_count", len(hits)))

	return &AskPolicyOutput{
		Answer:  body,
		Style:   string(style),
		Sources: toHitOutputs(hits),
	}, nil
}

func (s *Server) handleIndexStatus() *IndexStatusOutput {
	st := s.backend.Status()
	info := IndexInfo{
		Ready:      st.Ready,
		Dir:        st.Dir,
		Passages:   st.Passages,
		Dimensions: st.Dimensions,
		Dense:      st.Dense,
		Error:      st.Error,
	}
	if !st.LoadedAt.IsZero() {
		info.LoadedAt = st.LoadedAt.Format(time.RFC3339)
	}

	var rebuild *async.ProgressSnapshot
	if s.rebuild != nil {
		snap := s.rebuild.Snapshot()
		rebuild = &snap
	}

	c := s.config
	return &IndexStatusOutput{
		Rebuild: rebuild,
		Index:   info,
		Queries: newQueryStats(s.metrics.Snapshot()),
		Search: SearchInfo{
			TopK:           c.Search.TopK,
			DenseWeight:    c.Search.DenseWeight,
			LexicalWeight:  c.Search.LexicalWeight,
			LexicalBackend: c.Search.LexicalBackend,
			VectorBackend:  c.Search.VectorBackend,
		},
		Embeddings: EmbeddingInfo{
			Enabled:    c.Search.DenseEnabled,
			Provider:   c.Embeddings.Provider,
			Model:      c.Embeddings.Model,
			LocalModel: c.Embeddings.LocalModel,
		},
	}
}

func (s *Server) mcpHybridSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, in HybridSearchInput) (
	*mcp.CallToolResult,
	HybridSearchOutput,
	error,
) {
	out, md, err := s.handleHybridSearch(ctx, in)
	if err != nil {
		return nil, HybridSearchOutput{}, err
	}
	return textResult(md), *out, nil
}

func (s *Server) mcpAskPolicyHandler(ctx context.Context, _ *mcp.CallToolRequest, in AskPolicyInput) (
	*mcp.CallToolResult,
	AskPolicyOutput,
	error,
) {
	out, err := s.handleAskPolicy(ctx, in)
	if err != nil {
		return nil, AskPolicyOutput{}, err
	}
	return textResult(out.Answer), *out, nil
}

func (s *Server) mcpIndexStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	return nil, *s.handleIndexStatus(), nil
}

// Serve runs the server until ctx is canceled or the client disconnects.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting",
		slog.String("transport", transport),
		slog.String("version", version.Version))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		s.logQuerySummary()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// record adds one tool call to the query metrics.
func (s *Server) record(tool, query string, res *search.Result, latency time.Duration, err error) {
	event := telemetry.QueryEvent{
		Tool:    tool,
		Query:   query,
		Latency: latency,
		Failed:  err != nil,
	}
	if err == nil && res != nil {
		event.ResultCount = len(res.Hits)
		if len(res.Hits) > 0 {
			event.TopScore = res.Hits[0].Score
		}
		event.Mode = telemetry.ModeLexical
		if res.Explain.DenseUsed {
			event.Mode = telemetry.ModeHybrid
		}
	}
	s.metrics.Record(event)
}

func (s *Server) logQuerySummary() {
	snap := s.metrics.Snapshot()
	if snap.TotalQueries == 0 {
		return
	}
	s.logger.Info("mcp_query_summary",
		slog.Int64("total", snap.TotalQueries),
		slog.Int64("failed", snap.FailedQueries),
		slog.Int64("zero_result", snap.ZeroResultCount),
		slog.Int64("hybrid", snap.ModeCounts[telemetry.ModeHybrid]),
		slog.Int64("lexical", snap.ModeCounts[telemetry.ModeLexical]),
		slog.Float64("repeat_rate", snap.ExactRepeatRate))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg accepts JSON numbers, which decode as float64.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
