package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// LockFile marks a rebuild in progress. It is left behind when a rebuild
// is interrupted.
const LockFile = "rebuild.lock"

// RebuildFunc does the actual work, reporting into progress.
type RebuildFunc func(ctx context.Context, progress *Progress) error

// Rebuilder serializes rebuilds. Triggers that arrive while a rebuild runs
// collapse into a single follow-up run.
type Rebuilder struct {
	dataDir  string
	fn       RebuildFunc
	progress *Progress
	triggers chan string
}

// NewRebuilder creates a rebuilder that keeps its lock file in dataDir.
func NewRebuilder(dataDir string, fn RebuildFunc) *Rebuilder {
	return &Rebuilder{
		dataDir:  dataDir,
		fn:       fn,
		progress: NewProgress(),
		triggers: make(chan string, 1),
	}
}

// Progress returns the progress tracker.
func (r *Rebuilder) Progress() *Progress {
	return r.progress
}

// Trigger requests a rebuild. It never blocks; when a request is already
// queued this one is merged into it.
func (r *Rebuilder) Trigger(reason string) {
	select {
	case r.triggers <- reason:
	default:
		slog.Debug("rebuild_trigger_coalesced", slog.String("reason", reason))
	}
}

// Run processes triggers until ctx is canceled. Rebuild failures are
// logged and recorded in Progress; they do not stop the loop.
func (r *Rebuilder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-r.triggers:
			_ = r.RunOnce(ctx, reason)
		}
	}
}

// RunOnce rebuilds synchronously.
func (r *Rebuilder) RunOnce(ctx context.Context, reason string) error {
	start := time.Now()
	r.progress.Begin(reason)
	slog.Info("rebuild_started", slog.String("trigger", reason))

	err := r.run(ctx)
	r.progress.Finish(err)

	if err != nil {
		slog.Error("rebuild_failed",
			slog.String("trigger", reason),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return err
	}
	snap := r.progress.Snapshot()
	slog.Info("rebuild_completed",
		slog.String("trigger", reason),
		slog.Duration("duration", time.Since(start)),
		slog.Int("passages", snap.Passages),
		slog.Bool("dense", snap.Dense))
	return nil
}

func (r *Rebuilder) run(ctx context.Context) error {
	if err := os.MkdirAll(r.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	lockPath := filepath.Join(r.dataDir, LockFile)
	if err := os.WriteFile(lockPath, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
		return fmt.Errorf("failed to write rebuild lock: %w", err)
	}

	err := r.fn(ctx, r.progress)
	if err != nil && errors.Is(err, context.Canceled) {
		// Leave the lock: the artifacts may be from an older corpus.
		return err
	}
	_ = os.Remove(lockPath)
	return err
}

// HasIncompleteLock reports whether a rebuild in dataDir was interrupted.
func HasIncompleteLock(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, LockFile))
	return err == nil
}
