package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smarthr/internal/ingest"
	"github.com/Aman-CERP/smarthr/internal/output"
)

func newIngestCmd(root *rootOptions) *cobra.Command {
	var inDir, outPath string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Split markdown policies into corpus passages",
		Long: `Read every *.md policy in the input folder, extract its text and split it
into passages of at most chunk_size characters. Passages shorter than
min_chunk_len are dropped. The result is written as JSON Lines, one passage
per line, sorted by file name.`,
		Example: `  # Use data/raw_policies and data/processed/corpus.jsonl
  smarthr ingest

  # Custom locations
  smarthr ingest --in ./policies --out ./corpus.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			if inDir == "" {
				inDir = cfg.RawDir()
			}
			if outPath == "" {
				outPath = cfg.CorpusPath()
			}

			renderer := root.renderer(cmd)
			if err := renderer.Start(cmd.Context()); err != nil {
				return err
			}
			defer func() { _ = renderer.Stop() }()

			stats, err := ingest.New(cfg.IngestOptions(), renderer).Ingest(cmd.Context(), inDir, outPath)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout(), root.color(cmd))
			out.Field("Corpus", stats.Output)
			out.Field("Dropped", stats.Dropped)
			if stats.Passages == 0 {
				out.Warningf("No passages produced from %s", inDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inDir, "in", "", "Folder of markdown policies (default: <data_dir>/raw_policies)")
	cmd.Flags().StringVar(&outPath, "out", "", "Corpus output path (default: <data_dir>/processed/corpus.jsonl)")

	return cmd
}
