package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smarthr/internal/answer"
	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/output"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var style string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a policy question with cited sources",
		Long: `Retrieve the top passages for a question and compose a short markdown
answer followed by numbered sources.

Styles:
  bullets    the top passages, shortened (default)
  paragraph  informative sentences stitched from the top passages
  llm        a chat model writes the answer with [n] citations; needs
             OPENAI_API_KEY and falls back to paragraph on any failure`,
		Example: `  smarthr ask "Can I carry over unused PTO?"
  smarthr ask "How do I get remote work approved?" --style paragraph`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			if style == "" {
				style = cfg.AnswerStyle()
			}
			parsed, err := answer.ParseStyle(style)
			if err != nil {
				return hrerrors.ValidationError(err.Error(), err)
			}

			handle, err := newHandle(cfg)
			if err != nil {
				return err
			}
			defer handle.Close()

			query := strings.Join(args, " ")
			hits, err := handle.HybridSearch(cmd.Context(), query)
			if err != nil {
				return err
			}

			md := newComposer(cfg).Compose(cmd.Context(), query, hits, parsed)
			output.New(cmd.OutOrStdout(), false).Markdown(md)
			return nil
		},
	}

	cmd.Flags().StringVarP(&style, "style", "s", "", "Answer style: bullets, paragraph, llm (default: answer.style)")

	return cmd
}
