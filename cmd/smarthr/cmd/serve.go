package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smarthr/internal/async"
	"github.com/Aman-CERP/smarthr/internal/config"
	"github.com/Aman-CERP/smarthr/internal/index"
	"github.com/Aman-CERP/smarthr/internal/logging"
	"github.com/Aman-CERP/smarthr/internal/mcp"
	"github.com/Aman-CERP/smarthr/internal/ui"
	"github.com/Aman-CERP/smarthr/internal/watcher"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		transport string
		watch     bool
		wopts     watchOptions
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Serve the hybrid_search, ask_policy and index_status tools over the Model
Context Protocol. stdout carries JSON-RPC exclusively, so all logs go to
~/.smarthr/logs/smarthr.log (see 'smarthr logs').

The index loads on the first query; a query that arrives before
'smarthr index build' has run gets an error naming the missing artifact.

With --watch, changes to raw_policies rebuild the corpus and index in the
background and the next query loads the new artifacts. index_status
reports the rebuild state.`,
		Example: `  # Register with an MCP client
  {"command": "smarthr", "args": ["serve"]}

  # Pick up policy edits without a restart
  {"command": "smarthr", "args": ["serve", "--watch"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}

			// Replace the CLI logger: nothing may reach stdout or stderr.
			level := cfg.Server.LogLevel
			if root.debug {
				level = "debug"
			}
			_ = root.stopLogging(cmd, nil)
			cleanup, err := logging.Install(logging.ServeConfig(level))
			if err != nil {
				return err
			}
			root.loggingCleanup = cleanup

			if ui.IsTTY(os.Stdin) {
				slog.Warn("serve_stdin_is_terminal",
					slog.String("hint", "smarthr serve expects an MCP client on stdin"))
			}

			if transport == "" {
				transport = cfg.Server.Transport
			}

			handle, err := newHandle(cfg)
			if err != nil {
				return err
			}
			defer handle.Close()

			srv, err := mcp.NewServer(handle, newComposer(cfg), cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if watch {
				if err := startServeWatch(ctx, cfg, wopts, handle, srv); err != nil {
					return err
				}
			}
			return srv.Serve(ctx, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport protocol (default: server.transport, only stdio is supported)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild the index in the background when policies change")
	wopts.bindFlags(cmd)

	return cmd
}

// startServeWatch rebuilds in the background on policy changes and resets
// handle after each successful build. It returns once the loops are started.
func startServeWatch(ctx context.Context, cfg *config.Config, opts watchOptions, handle *index.Handle, srv *mcp.Server) error {
	if err := requireDir(cfg.RawDir()); err != nil {
		return err
	}

	rebuilder := async.NewRebuilder(cfg.Paths.DataDir, newRebuildFunc(cfg, ui.NopRenderer{}, handle.Reset))
	srv.SetRebuildProgress(rebuilder.Progress())
	go rebuilder.Run(ctx)

	if async.HasIncompleteLock(cfg.Paths.DataDir) {
		rebuilder.Trigger("interrupted rebuild")
	}

	go func() {
		err := watchPolicies(ctx, cfg, opts, func(_ context.Context, batch []watcher.FileEvent) {
			rebuilder.Trigger(describeBatch(batch))
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("watch_stopped", slog.String("error", err.Error()))
		}
	}()
	return nil
}
