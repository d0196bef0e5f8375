// Package index builds the retrieval artifacts from the processed corpus and
// owns the one-time load of those artifacts for queries.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Aman-CERP/smarthr/internal/embed"
	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/store"
	"github.com/Aman-CERP/smarthr/internal/ui"
)

// IngestCommand is the remedy suggested when the processed corpus is absent.
const IngestCommand = "smarthr ingest"

// errEmbeddingsUnavailable stops the remaining batches once one batch
// exhausted every provider.
var errEmbeddingsUnavailable = errors.New("embeddings unavailable")

// BatchEmbedder resolves passage texts to vectors through the provider chain.
type BatchEmbedder interface {
	Resolve(ctx context.Context, texts []string) embed.Outcome
}

// BuilderConfig configures an index build.
type BuilderConfig struct {
	// CorpusPath is the processed corpus.jsonl.
	CorpusPath string

	// IndexDir receives vectors.npy and meta.jsonl.
	IndexDir string

	// BatchSize is the number of passages per embedding request (default: 32).
	BatchSize int

	// Workers bounds concurrent embedding requests (default: 2).
	Workers int

	// RequestsPerSecond throttles embedding requests; 0 disables throttling.
	RequestsPerSecond float64
}

// BuildStats contains the outcome of a build.
type BuildStats struct {
	Passages   int
	Dimensions int // 1 for the lexical-only placeholder
	Batches    int
	Provider   string
	Dense      bool
	Duration   time.Duration
}

// Builder turns corpus.jsonl into the co-indexed artifact pair.
type Builder struct {
	config   BuilderConfig
	embedder BatchEmbedder
	renderer ui.Renderer
	limiter  *rate.Limiter
}

// NewBuilder creates a Builder. A nil embedder builds a lexical-only index;
// a nil renderer discards progress.
func NewBuilder(cfg BuilderConfig, embedder BatchEmbedder, renderer ui.Renderer) (*Builder, error) {
	if cfg.CorpusPath == "" {
		return nil, hrerrors.ConfigError("corpus path is required", nil)
	}
	if cfg.IndexDir == "" {
		return nil, hrerrors.ConfigError("index directory is required", nil)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embed.DefaultBatchSize
	}
	cfg.BatchSize = min(cfg.BatchSize, embed.MaxBatchSize)
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if renderer == nil {
		renderer = ui.NopRenderer{}
	}

	b := &Builder{config: cfg, embedder: embedder, renderer: renderer}
	if cfg.RequestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return b, nil
}

// stageTiming tracks duration for each build stage.
type stageTiming struct {
	read  time.Duration
	embed time.Duration
	write time.Duration
}

// Build reads the corpus, embeds every passage and replaces the artifacts
// under an exclusive index lock. When no provider can embed the corpus the
// vectors file holds an N x 1 zero placeholder and queries run lexical-only.
func (b *Builder) Build(ctx context.Context) (*BuildStats, error) {
	start := time.Now()
	var timing stageTiming

	// Stage 1: Read corpus
	readStart := time.Now()
	b.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageReading,
		Message: fmt.Sprintf("Reading %s...", b.config.CorpusPath),
	})
	passages, err := b.readCorpus()
	if err != nil {
		return nil, err
	}
	timing.read = time.Since(readStart)

	// Stage 2: Exclusive lock for the whole replace
	lock := store.NewIndexLock(b.config.IndexDir)
	if err := lock.Lock(ctx); err != nil {
		return nil, hrerrors.New(hrerrors.ErrCodeIndexLocked, err.Error(), err).
			WithSuggestion("Wait for the running build to finish")
	}
	defer func() { _ = lock.Unlock() }()

	// Stage 3: Embed
	embedStart := time.Now()
	vectors, provider, batches, err := b.embedPassages(ctx, passages)
	if err != nil {
		return nil, err
	}
	timing.embed = time.Since(embedStart)

	dense := vectors != nil
	if !dense {
		vectors = placeholder(len(passages))
	}

	// Stage 4: Write artifacts
	writeStart := time.Now()
	b.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageWriting,
		Message: fmt.Sprintf("Writing %s and %s...", store.VectorsFile, store.MetadataFile),
	})
	if err := store.SaveArtifacts(b.config.IndexDir, vectors, passages); err != nil {
		return nil, hrerrors.New(hrerrors.ErrCodeFilePermission, "failed to write index artifacts", err)
	}
	timing.write = time.Since(writeStart)

	stats := &BuildStats{
		Passages:   len(passages),
		Dimensions: vectors.Cols,
		Batches:    batches,
		Provider:   provider,
		Dense:      dense,
		Duration:   time.Since(start),
	}

	warnings := 0
	if !dense && len(passages) > 0 {
		warnings = 1
	}
	b.renderer.Complete(ui.CompletionStats{
		Passages: stats.Passages,
		Duration: stats.Duration,
		Warnings: warnings,
		Stages: ui.StageTimings{
			Read:  timing.read,
			Embed: timing.embed,
			Write: timing.write,
		},
		Embedder: ui.EmbedderInfo{Provider: provider, Dimensions: dimsIf(dense, vectors.Cols)},
	})

	slog.Info("index_complete",
		slog.Int("passages", stats.Passages),
		slog.Int("dimensions", stats.Dimensions),
		slog.Int("batches", stats.Batches),
		slog.String("provider", provider),
		slog.Bool("dense", dense),
		slog.Int64("duration_read_ms", timing.read.Milliseconds()),
		slog.Int64("duration_embed_ms", timing.embed.Milliseconds()),
		slog.Int64("duration_write_ms", timing.write.Milliseconds()),
		slog.Int64("duration_total_ms", stats.Duration.Milliseconds()),
		slog.String("dir", b.config.IndexDir))

	return stats, nil
}

func (b *Builder) readCorpus() ([]store.Passage, error) {
	passages, err := store.ReadPassagesFile(b.config.CorpusPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, hrerrors.MissingArtifact(b.config.CorpusPath, IngestCommand)
	}
	if err != nil {
		return nil, hrerrors.CorruptIndex(fmt.Sprintf("cannot read corpus %s", b.config.CorpusPath), err)
	}
	return passages, nil
}

// embedPassages returns the N x d matrix, or nil when embeddings are
// unavailable. Only context cancellation is an error.
func (b *Builder) embedPassages(ctx context.Context, passages []store.Passage) (*store.Matrix, string, int, error) {
	if b.embedder == nil || len(passages) == 0 {
		return nil, "", 0, nil
	}

	n := len(passages)
	size := b.config.BatchSize
	batches := (n + size - 1) / size
	rows := make([][]float32, n)
	providers := make([]string, batches)

	var (
		mu   sync.Mutex
		done int
	)

	b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: 0, Total: n})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Workers)
	for i := 0; i < batches; i++ {
		lo, hi := i*size, min((i+1)*size, n)
		g.Go(func() error {
			if b.limiter != nil {
				if err := b.limiter.Wait(gctx); err != nil {
					return err
				}
			}

			texts := make([]string, hi-lo)
			for j := range texts {
				texts[j] = passages[lo+j].Text
			}
			out := b.embedder.Resolve(gctx, texts)
			if !out.Available {
				return errEmbeddingsUnavailable
			}
			copy(rows[lo:hi], out.Vectors)
			providers[i] = out.Provider

			mu.Lock()
			done += hi - lo
			current := done
			mu.Unlock()
			b.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageEmbedding,
				Current: current,
				Total:   n,
				Message: out.Provider,
			})
			return nil
		})
	}

	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, "", 0, fmt.Errorf("index build interrupted: %w", ctxErr)
	}
	if err != nil {
		b.warnLexicalOnly(err.Error())
		return nil, "", batches, nil
	}

	provider := providers[0]
	dims := len(rows[0])
	for i, p := range providers {
		if p != provider {
			b.warnLexicalOnly(fmt.Sprintf("batch %d embedded by %s, batch 0 by %s", i, p, provider))
			return nil, "", batches, nil
		}
	}
	for i, r := range rows {
		if len(r) != dims {
			b.warnLexicalOnly(fmt.Sprintf("passage %d has dimension %d, expected %d", i, len(r), dims))
			return nil, "", batches, nil
		}
		store.Normalize(r)
	}

	return store.NewMatrix(rows), provider, batches, nil
}

func (b *Builder) warnLexicalOnly(reason string) {
	slog.Warn("index_dense_disabled", slog.String("reason", reason))
	b.renderer.AddError(ui.ErrorEvent{
		Err:    fmt.Errorf("embeddings unavailable (%s); building lexical-only index", reason),
		IsWarn: true,
	})
}

// placeholder is the N x 1 zero matrix that marks an index without a dense
// signal. The vector index treats d <= 1 as unusable.
func placeholder(n int) *store.Matrix {
	return &store.Matrix{Rows: n, Cols: 1, Data: make([]float32, n)}
}

func dimsIf(ok bool, d int) int {
	if ok {
		return d
	}
	return 0
}
