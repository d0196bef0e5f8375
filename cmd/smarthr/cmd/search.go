package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/output"
	"github.com/Aman-CERP/smarthr/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit       int
	format      string // "text", "json"
	lexicalOnly bool
	explain     bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve the best matching policy passages",
		Long: `Rank policy passages with a weighted fusion of BM25 and dense similarity.

Both signals are min-max normalized over their candidate lists and fused as
dense_weight * dense + lexical_weight * lexical (0.6 / 0.4 by default). When
no embedding provider answers, the ranking falls back to BM25 alone.`,
		Example: `  smarthr search "carry over unused PTO"
  smarthr search "remote work approval" --limit 3 --explain
  smarthr search "parental leave" --format json --lexical-only`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: search.top_k)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.lexicalOnly, "lexical-only", false, "Use BM25 only (skip the dense signal)")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show per-signal scores and retrieval decisions")

	return cmd
}

func runSearch(cmd *cobra.Command, root *rootOptions, query string, opts searchOptions) error {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return hrerrors.ValidationError(err.Error(), err)
	}
	if opts.limit < 0 {
		return hrerrors.ValidationError(fmt.Sprintf("limit must be positive, got %d", opts.limit), nil)
	}

	cfg, _, err := root.loadConfig()
	if err != nil {
		return err
	}
	handle, err := newHandle(cfg)
	if err != nil {
		return err
	}
	defer handle.Close()

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))

	res, err := handle.Search(cmd.Context(), query, search.SearchOptions{
		Limit:       opts.limit,
		LexicalOnly: opts.lexicalOnly,
	})
	out := output.New(cmd.OutOrStdout(), root.color(cmd) && format == output.FormatText)
	if err != nil {
		if format == output.FormatJSON {
			if data, jerr := hrerrors.FormatJSON(err); jerr == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			}
		}
		return err
	}

	slog.Info("search_complete",
		slog.Int("results", len(res.Hits)),
		slog.Bool("dense_used", res.Explain.DenseUsed))

	if format == output.FormatJSON {
		return out.HitsJSON(res, opts.explain)
	}
	out.Hits(res, opts.explain)
	return nil
}
