package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/smarthr/internal/async"
	"github.com/Aman-CERP/smarthr/internal/config"
	"github.com/Aman-CERP/smarthr/internal/index"
	"github.com/Aman-CERP/smarthr/internal/ingest"
	"github.com/Aman-CERP/smarthr/internal/ui"
	"github.com/Aman-CERP/smarthr/internal/watcher"
)

// newRebuildFunc runs ingest then index build with the configured paths.
// afterBuild runs once the new artifacts are on disk.
func newRebuildFunc(cfg *config.Config, renderer ui.Renderer, afterBuild func() error) async.RebuildFunc {
	return func(ctx context.Context, progress *async.Progress) error {
		progress.SetStage(async.StageIngesting)
		istats, err := ingest.New(cfg.IngestOptions(), renderer).Ingest(ctx, cfg.RawDir(), cfg.CorpusPath())
		if err != nil {
			return err
		}
		progress.SetCorpus(istats.Documents, istats.Passages)

		progress.SetStage(async.StageEmbedding)
		chain, err := newEmbedChain(cfg)
		if err != nil {
			return err
		}
		var embedder index.BatchEmbedder
		if chain != nil {
			embedder = chain
		}
		builder, err := index.NewBuilder(index.BuilderConfig{
			CorpusPath:        cfg.CorpusPath(),
			IndexDir:          cfg.IndexDir(),
			BatchSize:         cfg.Embeddings.BatchSize,
			RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
		}, embedder, renderer)
		if err != nil {
			return err
		}
		bstats, err := builder.Build(ctx)
		if err != nil {
			return err
		}
		progress.SetDense(bstats.Dense)

		if afterBuild != nil {
			progress.SetStage(async.StageLoading)
			return afterBuild()
		}
		return nil
	}
}

// describeBatch summarizes a change batch for logs and progress, e.g.
// "leave.md modified, remote.md created".
func describeBatch(batch []watcher.FileEvent) string {
	const maxListed = 3
	parts := make([]string, 0, min(len(batch), maxListed))
	for i, ev := range batch {
		if i == maxListed {
			parts = append(parts, fmt.Sprintf("%d more", len(batch)-maxListed))
			break
		}
		parts = append(parts, ev.Path+" "+pastTense(ev.Operation))
	}
	return strings.Join(parts, ", ")
}

func pastTense(op watcher.Operation) string {
	switch op {
	case watcher.OpCreate:
		return "created"
	case watcher.OpDelete:
		return "deleted"
	case watcher.OpRename:
		return "renamed"
	default:
		return "modified"
	}
}
