// Package ingest converts markdown policy documents into the processed
// corpus: one JSONL line per passage, in file-name order.
package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/store"
	"github.com/Aman-CERP/smarthr/internal/ui"
)

// Defaults for passage shape and display metadata.
const (
	DefaultChunkSize     = 500
	DefaultMinChunkLen   = 60
	DefaultRegion        = "GLOBAL"
	DefaultEffectiveFrom = "2025-01-01"

	// CorpusFile is the processed corpus file name.
	CorpusFile = "corpus.jsonl"
)

// Config configures ingestion.
type Config struct {
	ChunkSize     int    // max characters per passage
	MinChunkLen   int    // shorter passages are dropped
	Region        string // stamped on every passage
	EffectiveFrom string // stamped on every passage
}

// DefaultConfig returns the standard ingestion settings.
func DefaultConfig() Config {
	return Config{
		ChunkSize:     DefaultChunkSize,
		MinChunkLen:   DefaultMinChunkLen,
		Region:        DefaultRegion,
		EffectiveFrom: DefaultEffectiveFrom,
	}
}

// Stats contains the outcome of an ingest run.
type Stats struct {
	Documents int
	Passages  int
	Dropped   int // chunks below MinChunkLen
	Output    string
	Duration  time.Duration
}

// Ingester turns a folder of markdown policies into corpus.jsonl.
type Ingester struct {
	config   Config
	renderer ui.Renderer
}

// New creates an Ingester. Zero config fields take their defaults; a nil
// renderer discards progress.
func New(cfg Config, renderer ui.Renderer) *Ingester {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.MinChunkLen <= 0 {
		cfg.MinChunkLen = def.MinChunkLen
	}
	if cfg.Region == "" {
		cfg.Region = def.Region
	}
	if cfg.EffectiveFrom == "" {
		cfg.EffectiveFrom = def.EffectiveFrom
	}
	if renderer == nil {
		renderer = ui.NopRenderer{}
	}
	return &Ingester{config: cfg, renderer: renderer}
}

// Ingest reads every *.md file in inDir (not recursive) and atomically
// replaces outPath with the resulting passages.
func (in *Ingester) Ingest(ctx context.Context, inDir, outPath string) (*Stats, error) {
	start := time.Now()

	entries, err := os.ReadDir(inDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, hrerrors.New(hrerrors.ErrCodeFileNotFound,
			fmt.Sprintf("policy directory %s does not exist", inDir), err).
			WithSuggestion("Pass the folder holding the markdown policies with --in")
	}
	if err != nil {
		return nil, hrerrors.New(hrerrors.ErrCodeFilePermission, fmt.Sprintf("cannot read %s", inDir), err)
	}

	// os.ReadDir sorts by file name, which keeps corpus order reproducible.
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		files = append(files, e.Name())
	}

	stats := &Stats{Output: outPath}
	var passages []store.Passage
	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageChunking,
			Current: i + 1,
			Total:   len(files),
			Message: name,
		})

		src, err := os.ReadFile(filepath.Join(inDir, name))
		if err != nil {
			in.renderer.AddError(ui.ErrorEvent{File: name, Err: err, IsWarn: true})
			slog.Warn("ingest_file_skipped", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}

		doc, dropped := in.Document(name, src)
		passages = append(passages, doc...)
		stats.Documents++
		stats.Dropped += dropped
	}
	stats.Passages = len(passages)

	in.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageWriting,
		Message: fmt.Sprintf("Writing %s...", outPath),
	})
	if err := store.WriteFileAtomic(outPath, func(w io.Writer) error {
		return store.WritePassages(w, passages)
	}); err != nil {
		return nil, hrerrors.New(hrerrors.ErrCodeFilePermission, fmt.Sprintf("cannot write %s", outPath), err)
	}
	stats.Duration = time.Since(start)

	in.renderer.Complete(ui.CompletionStats{
		Documents: stats.Documents,
		Passages:  stats.Passages,
		Duration:  stats.Duration,
	})
	slog.Info("ingest_complete",
		slog.Int("documents", stats.Documents),
		slog.Int("passages", stats.Passages),
		slog.Int("dropped", stats.Dropped),
		slog.String("output", outPath),
		slog.Int64("duration_ms", stats.Duration.Milliseconds()))

	return stats, nil
}

// Document chunks one markdown file. Section numbers count every chunk,
// including the dropped short ones.
func (in *Ingester) Document(filename string, src []byte) (passages []store.Passage, dropped int) {
	policyID := strings.TrimSuffix(filename, filepath.Ext(filename))
	body := MarkdownToText([]byte(strings.ToValidUTF8(string(src), "")))

	for i, chunk := range SplitChunks(body, in.config.ChunkSize) {
		if utf8.RuneCountInString(chunk) < in.config.MinChunkLen {
			dropped++
			continue
		}
		section := fmt.Sprintf("sec-%02d", i)
		passages = append(passages, store.Passage{
			ID:            PassageID(policyID, i),
			PolicyID:      policyID,
			Section:       section,
			Text:          chunk,
			Region:        in.config.Region,
			EffectiveFrom: in.config.EffectiveFrom,
			Source:        fmt.Sprintf("file://%s#%s", filename, section),
		})
	}
	return passages, dropped
}

// PassageID is the stable id of chunk i of a policy.
func PassageID(policyID string, i int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s-%d", policyID, i)))
	return hex.EncodeToString(sum[:])
}
