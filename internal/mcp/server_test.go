package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/smarthr/internal/answer"
	"github.com/Aman-CERP/smarthr/internal/async"
	"github.com/Aman-CERP/smarthr/internal/config"
	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/index"
	"github.com/Aman-CERP/smarthr/internal/search"
	"github.com/Aman-CERP/smarthr/internal/store"
)

func TestNewServer_RequiresBackend(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	require.Error(t, err)
}

func TestNewServer_DefaultsConfigAndComposer(t *testing.T) {
	srv, err := NewServer(&mockBackend{}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, srv.MCPServer())
	assert.Equal(t, 6, srv.config.Search.TopK)
	assert.NotNil(t, srv.composer)
}

func TestListTools(t *testing.T) {
	srv := newTestServer(t, &mockBackend{})

	names := make([]string, 0, 3)
	for _, tool := range srv.ListTools() {
		assert.NotEmpty(t, tool.Description)
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{ToolHybridSearch, ToolAskPolicy, ToolIndexStatus}, names)
}

func TestHybridSearch_ReturnsHitsAndMarkdown(t *testing.T) {
	// Given
	backend := &mockBackend{}
	srv := newTestServer(t, backend)

	// When
	out, md, err := srv.handleHybridSearch(context.Background(), HybridSearchInput{Query: "  PTO carry over  "})

	// Then: query trimmed, default limit applied
	require.NoError(t, err)
	assert.Equal(t, "PTO carry over", out.Query)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "leave", out.Results[0].PolicyID)
	assert.Equal(t, 6, backend.lastOpts.Limit)
	assert.Contains(t, md, "### 1. file://leave.md#sec-01")
}

func TestHybridSearch_LimitClamping(t *testing.T) {
	tests := []struct {
		name  string
		args  map[string]any
		limit int
	}{
		{"json number", map[string]any{"query": "pto", "limit": float64(3)}, 3},
		{"absent", map[string]any{"query": "pto"}, 6},
		{"too large", map[string]any{"query": "pto", "limit": float64(500)}, 50},
		{"negative", map[string]any{"query": "pto", "limit": -2}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &mockBackend{}
			srv := newTestServer(t, backend)

			_, err := srv.CallTool(context.Background(), ToolHybridSearch, tt.args)

			require.NoError(t, err)
			assert.Equal(t, tt.limit, backend.lastOpts.Limit)
		})
	}
}

func TestHybridSearch_RejectsEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		srv := newTestServer(t, &mockBackend{})

		_, err := srv.CallTool(context.Background(), ToolHybridSearch, map[string]any{"query": q})

		var mcpErr *MCPError
		require.True(t, errors.As(err, &mcpErr))
		assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	}
}

func TestHybridSearch_IndexNotReady(t *testing.T) {
	// Given: the index was never built
	backend := &mockBackend{Err: hrerrors.IndexNotReady(hrerrors.MissingArtifact("data/index/bm25.json", store.BuildCommand))}
	srv := newTestServer(t, backend)

	// When
	_, err := srv.CallTool(context.Background(), ToolHybridSearch, map[string]any{"query": "pto"})

	// Then: the client is told how to fix it
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeIndexNotReady, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, store.BuildCommand)
}

func TestAskPolicy_DefaultStyleIsBullets(t *testing.T) {
	srv := newTestServer(t, &mockBackend{})

	out, err := srv.handleAskPolicy(context.Background(), AskPolicyInput{Query: "Can I carry over PTO?"})

	require.NoError(t, err)
	assert.Equal(t, string(answer.StyleBullets), out.Style)
	assert.Contains(t, out.Answer, "**Question:** Can I carry over PTO?")
	assert.Contains(t, out.Answer, "**Sources:**")
	assert.Contains(t, out.Answer, "- [1] file://leave.md#sec-01 (effective 2025-01-01)")
	assert.Contains(t, out.Answer, "- [2] policy://remote-work/sec-00 (effective n/a)")
	assert.Len(t, out.Sources, 2)
}

func TestAskPolicy_ConfiguredStyle(t *testing.T) {
	// Given: the config asks for the llm style but no generator is wired
	cfg := config.NewConfig()
	cfg.Answer.UseLLM = true
	srv, err := NewServer(&mockBackend{}, answer.NewComposer(nil), cfg)
	require.NoError(t, err)

	// When
	out, err := srv.handleAskPolicy(context.Background(), AskPolicyInput{Query: "Can I carry over PTO?"})

	// Then: llm degrades to a paragraph with the fallback note
	require.NoError(t, err)
	assert.Equal(t, string(answer.StyleLLM), out.Style)
	assert.Contains(t, out.Answer, "LLM unavailable")
}

func TestAskPolicy_InvalidStyle(t *testing.T) {
	srv := newTestServer(t, &mockBackend{})

	_, err := srv.CallTool(context.Background(), ToolAskPolicy, map[string]any{"query": "pto", "style": "haiku"})

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "haiku")
}

func TestAskPolicy_NoHits(t *testing.T) {
	backend := &mockBackend{SearchFn: func(context.Context, string, search.SearchOptions) (*search.Result, error) {
		return &search.Result{}, nil
	}}
	srv := newTestServer(t, backend)

	out, err := srv.handleAskPolicy(context.Background(), AskPolicyInput{Query: "sabbatical"})

	require.NoError(t, err)
	assert.Contains(t, out.Answer, answer.NoMatchMessage)
	assert.NotNil(t, out.Sources)
}

func TestIndexStatus(t *testing.T) {
	// Given: a loaded index and default config
	loaded := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	backend := &mockBackend{StatusFn: func() index.Status {
		return index.Status{Ready: true, Dir: "data/index", Passages: 12, Dimensions: 384, Dense: true, LoadedAt: loaded}
	}}
	srv := newTestServer(t, backend)

	// When
	result, err := srv.CallTool(context.Background(), ToolIndexStatus, nil)

	// Then
	require.NoError(t, err)
	out, ok := result.(*IndexStatusOutput)
	require.True(t, ok, "expected *IndexStatusOutput, got %T", result)
	assert.Equal(t, IndexInfo{
		Ready: true, Dir: "data/index", Passages: 12, Dimensions: 384, Dense: true,
		LoadedAt: "2026-03-01T09:30:00Z",
	}, out.Index)
	assert.Equal(t, 6, out.Search.TopK)
	assert.InDelta(t, 0.6, out.Search.DenseWeight, 1e-9)
	assert.InDelta(t, 0.4, out.Search.LexicalWeight, 1e-9)
	assert.Equal(t, string(store.LexicalBackendOkapi), out.Search.LexicalBackend)
	assert.True(t, out.Embeddings.Enabled)
	assert.Equal(t, "local", out.Embeddings.Provider)
}

func TestIndexStatus_NotReady(t *testing.T) {
	backend := &mockBackend{StatusFn: func() index.Status {
		return index.Status{Dir: "data/index", Error: "missing artifact data/index/meta.jsonl"}
	}}
	srv := newTestServer(t, backend)

	out := srv.handleIndexStatus()

	assert.False(t, out.Index.Ready)
	assert.Empty(t, out.Index.LoadedAt)
	assert.Contains(t, out.Index.Error, "meta.jsonl")
}

func TestIndexStatus_ReportsQueryStats(t *testing.T) {
	// Given: one hybrid search, one lexical-only answer and one failure
	backend := &mockBackend{}
	backend.SearchFn = func(_ context.Context, query string, _ search.SearchOptions) (*search.Result, error) {
		res := &search.Result{Hits: sampleHits()}
		res.Explain.DenseUsed = query == "carry over pto"
		return res, nil
	}
	srv := newTestServer(t, backend)
	ctx := context.Background()

	_, _, err := srv.handleHybridSearch(ctx, HybridSearchInput{Query: "carry over pto"})
	require.NoError(t, err)
	_, err = srv.handleAskPolicy(ctx, AskPolicyInput{Query: "remote work approval"})
	require.NoError(t, err)
	backend.Err = hrerrors.IndexNotReady(nil)
	_, _, err = srv.handleHybridSearch(ctx, HybridSearchInput{Query: "carry over pto"})
	require.Error(t, err)

	// When
	q := srv.handleIndexStatus().Queries

	// Then
	assert.Equal(t, int64(3), q.Total)
	assert.Equal(t, int64(1), q.Failed)
	assert.Equal(t, int64(1), q.Hybrid)
	assert.Equal(t, int64(1), q.LexicalOnly)
	assert.Zero(t, q.ZeroResult)
	assert.InDelta(t, 1.0/3, q.RepeatRate, 1e-9)
	assert.Contains(t, q.TopTerms, "carry")
	assert.NotEmpty(t, q.Since)
}

func TestIndexStatus_Rebuild(t *testing.T) {
	// Given: a server without a watcher
	srv := newTestServer(t, &mockBackend{})
	assert.Nil(t, srv.handleIndexStatus().Rebuild)

	// When: a rebuild tracker is attached and a rebuild finishes
	progress := async.NewProgress()
	progress.Begin("leave.md modified")
	progress.SetCorpus(3, 9)
	progress.Finish(nil)
	srv.SetRebuildProgress(progress)

	// Then
	rebuild := srv.handleIndexStatus().Rebuild
	require.NotNil(t, rebuild)
	assert.Equal(t, "ready", rebuild.Status)
	assert.Equal(t, "leave.md modified", rebuild.Trigger)
	assert.Equal(t, 9, rebuild.Passages)
}

func TestCallTool_Unknown(t *testing.T) {
	srv := newTestServer(t, &mockBackend{})

	_, err := srv.CallTool(context.Background(), "search_code", nil)

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestServe_UnknownTransport(t *testing.T) {
	srv := newTestServer(t, &mockBackend{})

	err := srv.Serve(context.Background(), "sse")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "supported: stdio")
}

// connect wires a client session to srv over in-memory transports.
func connect(t *testing.T, srv *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ss, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestProtocol_ToolsOverSession(t *testing.T) {
	// Given: a client connected to the server
	cs := connect(t, newTestServer(t, &mockBackend{}))
	ctx := context.Background()

	// When: listing tools
	list, err := cs.ListTools(ctx, nil)

	// Then: all three are advertised
	require.NoError(t, err)
	names := make([]string, 0, len(list.Tools))
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolHybridSearch, ToolAskPolicy, ToolIndexStatus}, names)

	// When: calling hybrid_search
	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      ToolHybridSearch,
		Arguments: map[string]any{"query": "PTO carry over", "limit": 2},
	})

	// Then: the markdown rendering is returned as text
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "## Policy passages for: \"PTO carry over\"")
}

func TestProtocol_ToolErrorIsReported(t *testing.T) {
	cs := connect(t, newTestServer(t, &mockBackend{}))

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      ToolHybridSearch,
		Arguments: map[string]any{"query": "   "},
	})

	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestProtocol_ReadPolicyResource(t *testing.T) {
	backend := &mockBackend{Passages: []store.Passage{{
		PolicyID: "leave", Section: "sec-01", Text: "Employees may carry over up to five unused PTO days.",
	}}}
	cs := connect(t, newTestServer(t, backend))

	res, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "policy://leave/sec-01"})

	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, "five unused PTO days")
	assert.Contains(t, res.Contents[0].Text, "Source: policy://leave/sec-01")
}
