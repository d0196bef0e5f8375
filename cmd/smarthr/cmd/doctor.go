package cmd

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smarthr/internal/embed"
	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/lifecycle"
	"github.com/Aman-CERP/smarthr/internal/output"
	"github.com/Aman-CERP/smarthr/internal/preflight"
)

func newDoctorCmd(root *rootOptions) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and pipeline artifacts",
		Long: `Run diagnostics to ensure smarthr can build and serve its index.

Checks:
  - Write permissions on the data directory (required)
  - Disk space (100MB minimum, required)
  - File descriptor limits
  - Raw policy files, corpus.jsonl and the index artifacts
  - Embedding provider reachability

Artifact and provider problems are warnings: queries still run on BM25
while the dense signal is unavailable. Use --offline to skip the provider
probe.`,
		Example: `  # Run diagnostics
  smarthr doctor

  # Verbose output with details
  smarthr doctor --verbose

  # JSON output for scripting
  smarthr doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, root, verbose, jsonOutput, offline)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the embedding provider probe")

	return cmd
}

// doctorReport is the --json shape.
type doctorReport struct {
	Status   string        `json:"status"`
	Checks   []doctorCheck `json:"checks"`
	Warnings []string      `json:"warnings,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
}

type doctorCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
	Details  string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, root *rootOptions, verbose, jsonOutput, offline bool) error {
	cfg, _, err := root.loadConfig()
	if err != nil {
		return err
	}
	chain, err := newEmbedChain(cfg)
	if err != nil {
		return err
	}

	checkOpts := []preflight.Option{
		preflight.WithOffline(offline),
		preflight.WithVerbose(verbose),
		preflight.WithEmbedder(chain),
		preflight.WithOutput(cmd.OutOrStdout()),
	}
	if chain != nil && slices.Contains(chain.Strategies(), string(embed.ProviderLocal)) {
		checkOpts = append(checkOpts, preflight.WithOllama(
			lifecycle.NewOllamaManager(cfg.Embeddings.OllamaHost), cfg.Embeddings.LocalModel))
	}
	checker := preflight.New(checkOpts...)
	results := checker.RunAll(cmd.Context(), preflight.Paths{
		DataDir:    cfg.Paths.DataDir,
		RawDir:     cfg.RawDir(),
		CorpusPath: cfg.CorpusPath(),
		IndexDir:   cfg.IndexDir(),
	})

	if jsonOutput {
		if err := output.New(cmd.OutOrStdout(), false).JSON(newDoctorReport(checker, results)); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return hrerrors.New(hrerrors.ErrCodeSystemCheck, "system check failed", nil).
			WithSuggestion("Fix the failed checks listed above")
	}
	return nil
}

func newDoctorReport(checker *preflight.Checker, results []preflight.CheckResult) doctorReport {
	report := doctorReport{
		Status: checker.SummaryStatus(results),
		Checks: make([]doctorCheck, len(results)),
	}
	for i, r := range results {
		report.Checks[i] = doctorCheck{
			Name:     r.Name,
			Status:   r.Status.String(),
			Message:  r.Message,
			Required: r.Required,
			Details:  r.Details,
		}
		switch {
		case r.IsCritical():
			report.Errors = append(report.Errors, r.Name+": "+r.Message)
		case r.Status != preflight.StatusPass:
			report.Warnings = append(report.Warnings, r.Name+": "+r.Message)
		}
	}
	return report
}
