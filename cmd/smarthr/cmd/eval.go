package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/mcp"
	"github.com/Aman-CERP/smarthr/internal/output"
	"github.com/Aman-CERP/smarthr/internal/validation"
)

// DefaultQueriesFile is the golden query file, relative to the project root.
const DefaultQueriesFile = "eval/queries.yaml"

func newEvalCmd(root *rootOptions) *cobra.Command {
	var (
		queriesPath string
		limit       int
		minPassRate float64
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score retrieval against golden policy questions",
		Long: `Run the golden queries in eval/queries.yaml through the MCP tools and
report where the expected policies rank.

The file has three lists:
  tier1     must-pass questions
  tier2     harder questions, reported but not enforced
  negative  malformed or off-topic queries that must not crash

Each query names the tool (hybrid_search by default) and the expected
policy IDs or source prefixes. A query passes when any expected policy
appears in the results. MRR is reported per tier.`,
		Example: `  smarthr eval
  smarthr eval --queries eval/regressions.yaml --min-pass-rate 80
  smarthr eval --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, projectRoot, err := root.loadConfig()
			if err != nil {
				return err
			}
			if queriesPath == "" {
				queriesPath = filepath.Join(projectRoot, DefaultQueriesFile)
			}
			queries, err := validation.LoadQueries(queriesPath)
			if err != nil {
				return err
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

			result := validation.NewValidator(srv, limit).RunAll(cmd.Context(), queries)

			out := output.New(cmd.OutOrStdout(), root.color(cmd))
			if jsonOutput {
				if err := out.JSON(result); err != nil {
					return err
				}
			} else {
				printEval(out, result)
			}

			if rate := result.Tier1Summary.PassRate(); result.Tier1Summary.Total > 0 && rate < minPassRate {
				return hrerrors.New(hrerrors.ErrCodeSearchFailed,
					fmt.Sprintf("tier 1 pass rate %.0f%% is below minimum %.0f%%", rate, minPassRate), nil).
					WithSuggestion("Inspect the failed queries with 'smarthr search --explain'")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&queriesPath, "queries", "q", "", "Query file (default: <project>/"+DefaultQueriesFile+")")
	cmd.Flags().IntVarP(&limit, "limit", "n", validation.DefaultLimit, "Hits requested per hybrid_search query")
	cmd.Flags().Float64Var(&minPassRate, "min-pass-rate", 0, "Fail when the tier 1 pass rate (percent) is lower")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printEval(out *output.Writer, result *validation.ValidationResult) {
	tiers := []struct {
		name    string
		results []validation.TestResult
		summary validation.TierSummary
	}{
		{"Tier 1", result.Tier1, result.Tier1Summary},
		{"Tier 2", result.Tier2, result.Tier2Summary},
		{"Negative", result.Negative, result.NegativeSummary},
	}

	for _, tier := range tiers {
		if tier.summary.Total == 0 {
			continue
		}
		out.Status("", tier.name)
		for _, r := range tier.results {
			line := fmt.Sprintf("%s %s", r.Spec.ID, r.Spec.Name)
			switch {
			case r.Error != "":
				out.Error(line + ": " + r.Error)
			case !r.Passed:
				out.Warning(line + ": expected " + fmt.Sprint(r.Spec.Expected) + " not in results")
			case r.MatchedAt >= 0:
				out.Success(fmt.Sprintf("%s (rank %d)", line, r.MatchedAt+1))
			default:
				out.Success(line)
			}
		}
		out.Field("Passed", fmt.Sprintf("%d/%d (%.0f%%)", tier.summary.Pass, tier.summary.Total, tier.summary.PassRate()))
		if tier.name != "Negative" {
			out.Field("MRR", fmt.Sprintf("%.3f", tier.summary.MRR))
		}
		out.Newline()
	}
}
