package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smarthr/internal/index"
	"github.com/Aman-CERP/smarthr/internal/output"
	"github.com/Aman-CERP/smarthr/internal/store"
)

func newIndexCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and inspect the search index",
	}

	cmd.AddCommand(newIndexBuildCmd(root))
	cmd.AddCommand(newIndexInfoCmd(root))

	return cmd
}

func newIndexBuildCmd(root *rootOptions) *cobra.Command {
	var (
		corpusPath string
		indexDir   string
		batchSize  int
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed the corpus and write the index artifacts",
		Long: `Embed every corpus passage and write vectors.npy and meta.jsonl to the
index directory. The two files are always written together, row i of the
matrix belonging to line i of the metadata.

When no embedding provider is reachable, a one-column placeholder matrix is
written and queries run on BM25 alone.`,
		Example: `  smarthr index build
  smarthr index build --batch-size 64 --workers 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			if corpusPath == "" {
				corpusPath = cfg.CorpusPath()
			}
			if indexDir == "" {
				indexDir = cfg.IndexDir()
			}
			if batchSize <= 0 {
				batchSize = cfg.Embeddings.BatchSize
			}

			chain, err := newEmbedChain(cfg)
			if err != nil {
				return err
			}
			var embedder index.BatchEmbedder
			if chain != nil {
				embedder = chain
			}

			renderer := root.renderer(cmd)
			builder, err := index.NewBuilder(index.BuilderConfig{
				CorpusPath:        corpusPath,
				IndexDir:          indexDir,
				BatchSize:         batchSize,
				Workers:           workers,
				RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
			}, embedder, renderer)
			if err != nil {
				return err
			}

			if err := renderer.Start(cmd.Context()); err != nil {
				return err
			}
			stats, err := builder.Build(cmd.Context())
			_ = renderer.Stop()
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout(), root.color(cmd))
			out.Field("Index", indexDir)
			if stats.Dense {
				out.Field("Embeddings", fmt.Sprintf("%s, %d dimensions", stats.Provider, stats.Dimensions))
			} else {
				out.Warning("Dense signal unavailable; queries will use BM25 only")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&corpusPath, "corpus", "", "Corpus path (default: <data_dir>/processed/corpus.jsonl)")
	cmd.Flags().StringVar(&indexDir, "out", "", "Index directory (default: <data_dir>/index)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Passages per embedding request (default: embeddings.batch_size)")
	cmd.Flags().IntVar(&workers, "workers", 2, "Concurrent embedding requests")

	return cmd
}

// indexInfo is the --json shape of `index info`.
type indexInfo struct {
	Status         index.Status `json:"status"`
	VectorsBytes   int64        `json:"vectors_bytes"`
	MetaBytes      int64        `json:"meta_bytes"`
	LexicalBackend string       `json:"lexical_backend"`
	VectorBackend  string       `json:"vector_backend"`
}

func newIndexInfoCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Load the index and show its shape",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			handle, err := newHandle(cfg)
			if err != nil {
				return err
			}
			defer handle.Close()

			// A load failure is reported through the status, not returned.
			_, _ = handle.Engine(cmd.Context())

			vecPath, metaPath := store.ArtifactPaths(cfg.IndexDir())
			info := indexInfo{
				Status:         handle.Status(),
				VectorsBytes:   fileSize(vecPath),
				MetaBytes:      fileSize(metaPath),
				LexicalBackend: cfg.Search.LexicalBackend,
				VectorBackend:  cfg.Search.VectorBackend,
			}

			out := output.New(cmd.OutOrStdout(), root.color(cmd))
			if jsonOutput {
				return out.JSON(info)
			}
			printIndexInfo(out, info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printIndexInfo(out *output.Writer, info indexInfo) {
	s := info.Status
	if !s.Ready {
		out.Warning("Index not ready")
		out.Field("Directory", s.Dir)
		if s.Error != "" {
			out.Field("Reason", s.Error)
		}
		return
	}

	out.Success("Index ready")
	out.Field("Directory", s.Dir)
	out.Field("Passages", s.Passages)
	if s.Dense {
		out.Field("Dense", fmt.Sprintf("%d dimensions", s.Dimensions))
	} else {
		out.Field("Dense", "placeholder (BM25 only)")
	}
	out.Field("Backends", fmt.Sprintf("%s / %s", info.LexicalBackend, info.VectorBackend))
	out.Field("Size", fmt.Sprintf("%s vectors, %s metadata", humanSize(info.VectorsBytes), humanSize(info.MetaBytes)))
	out.Field("Loaded", s.LoadedAt.Format(time.RFC3339))
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// humanSize formats bytes as a human-readable string.
func humanSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
