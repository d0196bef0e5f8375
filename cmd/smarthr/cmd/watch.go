package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smarthr/internal/async"
	"github.com/Aman-CERP/smarthr/internal/config"
	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/output"
	"github.com/Aman-CERP/smarthr/internal/ui"
	"github.com/Aman-CERP/smarthr/internal/watcher"
)

// watchOptions are shared by `watch` and `serve --watch`.
type watchOptions struct {
	debounce time.Duration
	poll     bool
}

func (o watchOptions) watcherOptions() watcher.Options {
	opts := watcher.DefaultOptions()
	if o.debounce > 0 {
		opts.DebounceWindow = o.debounce
	}
	opts.ForcePolling = o.poll
	return opts
}

func (o *watchOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&o.debounce, "debounce", 500*time.Millisecond, "Quiet period before a change triggers a rebuild")
	cmd.Flags().BoolVar(&o.poll, "poll", false, "Poll the policy folder instead of using file system events")
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		opts        watchOptions
		skipInitial bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the corpus and index when policies change",
		Long: `Watch the raw_policies folder and run ingest followed by index build
after every change to a *.md policy. Rapid changes are debounced into one
rebuild. A rebuild runs at startup unless --skip-initial is given, or
always when the previous rebuild was interrupted.

A failed rebuild is reported and leaves the previous artifacts in place.`,
		Example: `  smarthr watch
  smarthr watch --poll --debounce 2s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := requireDir(cfg.RawDir()); err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout(), root.color(cmd))
			renderer := ui.NewPlainRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(true)))
			rebuilder := async.NewRebuilder(cfg.Paths.DataDir, newRebuildFunc(cfg, renderer, nil))

			if !skipInitial || async.HasIncompleteLock(cfg.Paths.DataDir) {
				if err := rebuilder.RunOnce(cmd.Context(), "startup"); err != nil {
					out.Warningf("Initial rebuild failed: %v", err)
				}
			}

			out.Successf("Watching %s", cfg.RawDir())
			err = watchPolicies(cmd.Context(), cfg, opts, func(ctx context.Context, batch []watcher.FileEvent) {
				// Synchronous: batches arriving meanwhile queue in the watcher.
				_ = rebuilder.RunOnce(ctx, describeBatch(batch))
				snap := rebuilder.Progress().Snapshot()
				if snap.Status == string(async.StatusError) {
					out.Warningf("Rebuild failed (%s): %s", snap.Trigger, snap.ErrorMessage)
					return
				}
				out.Successf("Rebuilt after %s: %d passages", snap.Trigger, snap.Passages)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	opts.bindFlags(cmd)
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Do not rebuild at startup")

	return cmd
}

// watchPolicies passes each debounced batch of policy changes to onBatch
// until ctx is canceled.
func watchPolicies(ctx context.Context, cfg *config.Config, opts watchOptions, onBatch func(context.Context, []watcher.FileEvent)) error {
	w, err := watcher.New(opts.watcherOptions())
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx, cfg.RawDir()) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case err, ok := <-w.Errors():
			if ok {
				slog.Warn("watch_error", slog.String("error", err.Error()))
			}
		case batch, ok := <-w.Events():
			if !ok {
				return ctx.Err()
			}
			onBatch(ctx, batch)
		}
	}
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return hrerrors.New(hrerrors.ErrCodeFileNotFound, "policy folder not found: "+dir, err).
			WithSuggestion("Create it and add markdown policies, or set paths.data_dir")
	}
	return nil
}
