package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smarthr/internal/config"
	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/lifecycle"
	"github.com/Aman-CERP/smarthr/internal/output"
	"github.com/Aman-CERP/smarthr/internal/preflight"
)

func newSetupCmd(root *rootOptions) *cobra.Command {
	var noStart, noPull bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Prepare the local embedding model",
		Long: `Make sure the embedding providers in the chain can answer.

For the local provider this checks that Ollama is running (starting it when
installed locally) and pulls embeddings.local_model if it is missing. The
hosted provider only needs OPENAI_API_KEY; static embeddings need nothing.

Without any working provider smarthr still answers on BM25 alone.`,
		Example: `  smarthr setup
  smarthr setup --no-pull`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout(), root.color(cmd))

			if !cfg.Search.DenseEnabled {
				out.Warning("Dense retrieval is disabled (search.dense_enabled); nothing to set up")
				return nil
			}

			provider := cfg.Embeddings.Provider
			switch provider {
			case "static":
				out.Success("Static embeddings need no setup")
				return nil
			case "openai":
				if cfg.Embeddings.APIKey != "" {
					out.Successf("OpenAI: %s", cfg.Embeddings.Model)
				} else {
					out.Warning("OPENAI_API_KEY is not set; the local model will be used")
				}
			}

			err = setupOllama(cmd, cfg, out, lifecycle.EnsureOpts{AutoStart: !noStart, AutoPull: !noPull})
			if err != nil {
				if provider != "openai" || cfg.Embeddings.APIKey == "" {
					return err
				}
				// The local model is only the fallback here.
				out.Warningf("Local fallback unavailable: %v", err)
			}
			return probeChain(cmd, cfg, out)
		},
	}

	cmd.Flags().BoolVar(&noStart, "no-start", false, "Do not start Ollama when it is not running")
	cmd.Flags().BoolVar(&noPull, "no-pull", false, "Do not pull a missing model")

	return cmd
}

func setupOllama(cmd *cobra.Command, cfg *config.Config, out *output.Writer, opts lifecycle.EnsureOpts) error {
	model := cfg.Embeddings.LocalModel
	m := lifecycle.NewOllamaManager(cfg.Embeddings.OllamaHost)

	opts.Log = func(msg string) { out.Status("", msg) }
	opts.Progress = pullPrinter(out)

	err := m.EnsureReady(cmd.Context(), model, opts)
	var notInstalled *lifecycle.NotInstalledError
	switch {
	case errors.As(err, &notInstalled):
		return hrerrors.New(hrerrors.ErrCodeProviderFailure, "ollama is not installed", err).
			WithSuggestion(lifecycle.InstallInstructions())
	case err != nil:
		return hrerrors.New(hrerrors.ErrCodeProviderFailure, fmt.Sprintf("local model %s is not ready", model), err).
			WithSuggestion("Check 'ollama serve' and embeddings.ollama_host, or rerun without --no-start/--no-pull")
	}

	out.Successf("Ollama: %s at %s", model, m.Host())
	return nil
}

func probeChain(cmd *cobra.Command, cfg *config.Config, out *output.Writer) error {
	chain, err := newEmbedChain(cfg)
	if err != nil {
		return err
	}
	vec, provider, ok := chain.ResolveOne(cmd.Context(), "annual leave policy")
	if !ok {
		return hrerrors.New(hrerrors.ErrCodeProviderFailure, "no embedding provider answered", nil).
			WithSuggestion("Run 'smarthr doctor' for details; BM25 search keeps working")
	}
	out.Field("Embeddings", fmt.Sprintf("%s, %d dimensions", provider, len(vec)))
	return nil
}

// pullPrinter prints each status once and download progress in 25% steps.
func pullPrinter(out *output.Writer) func(lifecycle.PullProgress) {
	lastStatus := ""
	nextPct := 25.0
	return func(p lifecycle.PullProgress) {
		if p.Total > 0 && p.Percent >= nextPct {
			out.Status("", fmt.Sprintf("%s %.0f%% (%s of %s)", p.Status, p.Percent,
				preflight.FormatBytes(uint64(p.Completed)), preflight.FormatBytes(uint64(p.Total))))
			for nextPct <= p.Percent {
				nextPct += 25
			}
			return
		}
		if p.Total == 0 && p.Status != lastStatus {
			lastStatus = p.Status
			out.Status("", p.Status)
		}
	}
}
