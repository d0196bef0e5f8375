package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/logging"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	logFile string
}

func newLogsCmd(root *rootOptions) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View smarthr logs",
		Long: `Show the last lines of the smarthr log file (~/.smarthr/logs/smarthr.log).
The MCP server and any command run with --debug write there.

Use -f to follow new entries in real time (like 'tail -f').`,
		Example: `  smarthr logs                    # last 50 lines
  smarthr logs -f                 # follow
  smarthr logs --level warn       # warnings and errors only
  smarthr logs --filter ask_policy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, root, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter by keyword/pattern (regex)")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file")

	return cmd
}

func runLogs(cmd *cobra.Command, root *rootOptions, opts logsOptions) error {
	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return hrerrors.ValidationError(fmt.Sprintf("invalid filter pattern: %v", err), err)
		}
	}
	if opts.lines <= 0 {
		opts.lines = 50
	}

	out := cmd.OutOrStdout()
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: !root.color(cmd),
	}, out)

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}
	return viewer.Follow(cmd.Context(), path, func(e logging.Entry) {
		fmt.Fprintln(out, viewer.Format(e))
	})
}
