package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/smarthr/internal/answer"
	"github.com/Aman-CERP/smarthr/internal/config"
	"github.com/Aman-CERP/smarthr/internal/index"
	"github.com/Aman-CERP/smarthr/internal/search"
	"github.com/Aman-CERP/smarthr/internal/store"
)

// mockBackend implements Backend for testing.
type mockBackend struct {
	SearchFn func(ctx context.Context, query string, opts search.SearchOptions) (*search.Result, error)
	StatusFn func() index.Status
	Passages []store.Passage
	Err      error

	lastOpts search.SearchOptions
}

func (m *mockBackend) HybridSearch(ctx context.Context, query string) ([]search.RetrievalHit, error) {
	res, err := m.Search(ctx, query, search.SearchOptions{})
	if err != nil {
		return nil, err
	}
	return res.Hits, nil
}

func (m *mockBackend) Search(ctx context.Context, query string, opts search.SearchOptions) (*search.Result, error) {
	m.lastOpts = opts
	if m.Err != nil {
		return nil, m.Err
	}
	if m.SearchFn != nil {
		return m.SearchFn(ctx, query, opts)
	}
	return &search.Result{Hits: sampleHits()}, nil
}

func (m *mockBackend) Status() index.Status {
	if m.StatusFn != nil {
		return m.StatusFn()
	}
	return index.Status{Dir: "data/index"}
}

func (m *mockBackend) Passage(_ context.Context, policyID, section string) (store.Passage, bool, error) {
	if m.Err != nil {
		return store.Passage{}, false, m.Err
	}
	for _, p := range m.Passages {
		if p.PolicyID == policyID && p.Section == section {
			return p, true, nil
		}
	}
	return store.Passage{}, false, nil
}

func sampleHits() []search.RetrievalHit {
	return []search.RetrievalHit{
		{
			Text:          "Employees may carry over up to five unused PTO days into the next calendar year.",
			Source:        "file://leave.md#sec-01",
			Score:         0.873,
			PolicyID:      "leave",
			Section:       "sec-01",
			EffectiveFrom: "2025-01-01",
			DenseScore:    0.9,
			LexicalScore:  0.83,
		},
		{
			Text:         "Remote work requires written approval from your manager each quarter.",
			Source:       "policy://remote-work/sec-00",
			Score:        0.4,
			PolicyID:     "remote-work",
			Section:      "sec-00",
			LexicalScore: 1,
		},
	}
}

func newTestServer(t *testing.T, backend *mockBackend) *Server {
	t.Helper()
	srv, err := NewServer(backend, answer.NewComposer(nil), config.NewConfig())
	require.NoError(t, err)
	return srv
}
