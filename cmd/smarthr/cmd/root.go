// Package cmd provides the CLI commands for smarthr.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smarthr/internal/config"
	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/logging"
	"github.com/Aman-CERP/smarthr/internal/profiling"
	"github.com/Aman-CERP/smarthr/internal/ui"
	"github.com/Aman-CERP/smarthr/pkg/version"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	debug   bool
	project string
	noColor bool
	profile profiling.Options

	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the smarthr CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "smarthr",
		Short: "Hybrid retrieval for HR policy questions",
		Long: `smarthr answers HR policy questions from a folder of markdown policies.

Policies are split into passages, indexed for BM25 keyword search and for
dense (embedding) search, and every question is answered from the passages
that score best on a weighted fusion of both signals.

Typical workflow:
  smarthr ingest            # data/raw_policies/*.md -> data/processed/corpus.jsonl
  smarthr index build       # corpus.jsonl -> data/index/{vectors.npy,meta.jsonl}
  smarthr ask "Can I carry over unused PTO?"`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("smarthr version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.smarthr/logs/")
	cmd.PersistentFlags().StringVarP(&opts.project, "project", "C", "", "Project directory (default: nearest .smarthr.yaml or .git above the working directory)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&opts.profile.CPUPath, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.HeapPath, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.TracePath, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = opts.before
	cmd.PersistentPostRunE = opts.after

	cmd.AddCommand(newIngestCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newEvalCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newSetupCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the CLI logger: warnings to stderr, or everything
// to stderr and the log file with --debug. serve replaces it.
func (o *rootOptions) startLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = "warn"
	if o.debug {
		logCfg = logging.DebugConfig()
	}

	cleanup, err := logging.Install(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup

	if o.debug {
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

// before starts logging, then profiling if requested.
func (o *rootOptions) before(cmd *cobra.Command, args []string) error {
	if err := o.startLogging(cmd, args); err != nil {
		return err
	}
	if !o.profile.Enabled() {
		return nil
	}
	session, err := profiling.Start(o.profile)
	if err != nil {
		_ = o.stopLogging(cmd, args)
		return err
	}
	o.profiler = session
	return nil
}

// after flushes profiles before the logger closes.
func (o *rootOptions) after(cmd *cobra.Command, args []string) error {
	err := o.profiler.Stop()
	o.profiler = nil
	if logErr := o.stopLogging(cmd, args); err == nil {
		err = logErr
	}
	return err
}

func (o *rootOptions) stopLogging(_ *cobra.Command, _ []string) error {
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
	return nil
}

// projectRoot returns --project, or the nearest directory above the working
// directory holding .smarthr.yaml or .git, or the working directory.
func (o *rootOptions) projectRoot() (string, error) {
	if o.project != "" {
		return filepath.Abs(o.project)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		return cwd, nil
	}
	return root, nil
}

// loadConfig resolves the project root and loads the layered configuration.
func (o *rootOptions) loadConfig() (*config.Config, string, error) {
	root, err := o.projectRoot()
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, "", err
	}
	slog.Debug("config_loaded",
		slog.String("root", root),
		slog.String("data_dir", cfg.Paths.DataDir))
	return cfg, root, nil
}

// color reports whether styled output should be used on cmd's stdout.
func (o *rootOptions) color(cmd *cobra.Command) bool {
	return !o.noColor && !ui.DetectNoColor() && ui.IsTTY(cmd.OutOrStdout())
}

// renderer returns the progress renderer for long-running commands.
func (o *rootOptions) renderer(cmd *cobra.Command) ui.Renderer {
	return ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(o.noColor)))
}

// Execute runs the root command, canceling on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprint(os.Stderr, hrerrors.FormatForCLI(err))
	}
	return err
}
