package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/search"
	"github.com/Aman-CERP/smarthr/internal/store"
)

// HandleConfig configures how loaded artifacts become a search engine.
type HandleConfig struct {
	// Dir holds vectors.npy and meta.jsonl.
	Dir string

	// LexicalBackend is "okapi" (default) or "bleve".
	LexicalBackend string

	// VectorBackend is "flat" (default) or "hnsw".
	VectorBackend string

	// Engine configures retrieval.
	Engine search.EngineConfig
}

// Status describes a handle for index_status and `index info`.
type Status struct {
	Ready      bool      `json:"ready"`
	Dir        string    `json:"dir"`
	Passages   int       `json:"passages"`
	Dimensions int       `json:"dimensions"`
	Dense      bool      `json:"dense"`
	LoadedAt   time.Time `json:"loaded_at,omitzero"`
	Error      string    `json:"error,omitempty"`
}

// Handle is the process-wide, lazily loaded search engine. The first
// successful Engine call loads the artifacts; concurrent callers wait for
// that load. Failures are not cached, so a query after `index build`
// succeeds without a restart.
type Handle struct {
	config   HandleConfig
	embedder search.QueryEmbedder

	mu       sync.Mutex
	engine   *search.Engine
	loadedAt time.Time
}

// NewHandle creates an unloaded handle. embedder may be nil for lexical-only
// retrieval.
func NewHandle(cfg HandleConfig, embedder search.QueryEmbedder) *Handle {
	return &Handle{config: cfg, embedder: embedder}
}

// Engine returns the loaded engine, loading it on first use. Missing
// artifacts yield ErrCodeIndexNotReady wrapping the missing-artifact error.
func (h *Handle) Engine(ctx context.Context) (*search.Engine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.engine != nil {
		return h.engine, nil
	}

	engine, err := h.load(ctx)
	if err != nil {
		return nil, err
	}
	h.engine = engine
	h.loadedAt = time.Now()
	return engine, nil
}

// HybridSearch runs a default query through the loaded engine.
func (h *Handle) HybridSearch(ctx context.Context, query string) ([]search.RetrievalHit, error) {
	e, err := h.Engine(ctx)
	if err != nil {
		return nil, err
	}
	return e.HybridSearch(ctx, query)
}

// Search runs a query with options through the loaded engine.
func (h *Handle) Search(ctx context.Context, query string, opts search.SearchOptions) (*search.Result, error) {
	e, err := h.Engine(ctx)
	if err != nil {
		return nil, err
	}
	return e.Search(ctx, query, opts)
}

// Passage looks up one passage by policy id and section, loading the
// engine if needed.
func (h *Handle) Passage(ctx context.Context, policyID, section string) (store.Passage, bool, error) {
	e, err := h.Engine(ctx)
	if err != nil {
		return store.Passage{}, false, err
	}
	p, ok := e.Passage(policyID, section)
	return p, ok, nil
}

var _ search.Searcher = (*Handle)(nil)

func (h *Handle) load(ctx context.Context) (*search.Engine, error) {
	if err := store.CheckArtifacts(h.config.Dir); err != nil {
		return nil, hrerrors.IndexNotReady(err)
	}

	artifacts, err := store.LoadArtifacts(ctx, h.config.Dir)
	if err != nil {
		return nil, err
	}

	lexical, err := store.NewLexicalIndex(h.config.LexicalBackend, artifacts.Passages)
	if err != nil {
		return nil, hrerrors.ConfigError(err.Error(), err)
	}

	vectors, err := store.NewVectorIndex(h.config.VectorBackend, artifacts.Vectors)
	if err != nil {
		_ = lexical.Close()
		return nil, hrerrors.ConfigError(err.Error(), err)
	}

	opts := []search.EngineOption{search.WithVectorIndex(vectors)}
	if h.embedder != nil {
		opts = append(opts, search.WithQueryEmbedder(h.embedder))
	}
	engine, err := search.NewEngine(artifacts.Passages, lexical, h.config.Engine, opts...)
	if err != nil {
		_ = lexical.Close()
		return nil, err
	}

	slog.Info("index_loaded",
		slog.String("dir", h.config.Dir),
		slog.Int("passages", engine.Len()),
		slog.Int("dimensions", engine.Dimensions()),
		slog.String("lexical_backend", h.config.LexicalBackend),
		slog.String("vector_backend", h.config.VectorBackend))

	return engine, nil
}

// Status reports the load state without triggering a load.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Status{Dir: h.config.Dir}
	if h.engine == nil {
		if err := store.CheckArtifacts(h.config.Dir); err != nil {
			s.Error = err.Error()
		}
		return s
	}
	s.Ready = true
	s.Passages = h.engine.Len()
	s.Dimensions = h.engine.Dimensions()
	s.Dense = s.Dimensions > 1
	s.LoadedAt = h.loadedAt
	return s
}

// Reset drops the loaded engine so the next call reloads the artifacts,
// e.g. after a rebuild in another process.
func (h *Handle) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.engine == nil {
		return nil
	}
	err := h.engine.Close()
	h.engine = nil
	h.loadedAt = time.Time{}
	if err != nil {
		return fmt.Errorf("failed to close engine: %w", err)
	}
	return nil
}

// Close releases the loaded engine.
func (h *Handle) Close() error {
	return h.Reset()
}
