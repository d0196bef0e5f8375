// Package output formats CLI results: status lines, ranked hits and answers.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/smarthr/internal/answer"
	"github.com/Aman-CERP/smarthr/internal/search"
	"github.com/Aman-CERP/smarthr/internal/ui"
)

// snippetWidth bounds the passage text shown under each hit.
const snippetWidth = 240

// Format selects how results are printed.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. Empty selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format: %s (valid options: text, json)", s)
	}
}

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New creates a Writer. Styles are applied only when color is true.
func New(out io.Writer, color bool) *Writer {
	return &Writer{out: out, styles: ui.GetStyles(!color)}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Field prints an aligned "label: value" line.
func (w *Writer) Field(label string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.styles.Label.Render(fmt.Sprintf("%-12s", label+":")), value)
}

// Hits prints a ranked result list. With explain, the per-signal scores and
// the retrieval decisions are included.
func (w *Writer) Hits(res *search.Result, explain bool) {
	if len(res.Hits) == 0 {
		w.Warning("No matching policy passages.")
		return
	}

	for i, h := range res.Hits {
		effective := h.EffectiveFrom
		if effective == "" {
			effective = "n/a"
		}
		_, _ = fmt.Fprintf(w.out, "%2d. %s  %s  %s\n",
			i+1,
			w.styles.Score.Render(fmt.Sprintf("%.3f", h.Score)),
			w.styles.Source.Render(h.Source),
			w.styles.Dim.Render("effective "+effective))
		if explain {
			_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.Label.Render(
				fmt.Sprintf("dense=%.3f lexical=%.3f index=%d", h.DenseScore, h.LexicalScore, h.Index)))
		}
		_, _ = fmt.Fprintf(w.out, "    %s\n", answer.Shorten(h.Text, snippetWidth))
	}

	if explain {
		w.Newline()
		w.explain(res.Explain)
	}
}

func (w *Writer) explain(e search.Explain) {
	dense := "off"
	switch {
	case e.DenseUsed:
		dense = "used via " + e.Provider
	case e.DenseReason != "":
		dense = "off (" + e.DenseReason + ")"
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Explain"))
	w.Field("top_k", e.TopK)
	w.Field("weights", fmt.Sprintf("dense %.2f / lexical %.2f", e.Weights.Dense, e.Weights.Lexical))
	w.Field("dense", dense)
	w.Field("candidates", fmt.Sprintf("%d (dense %d, lexical %d)", e.Candidates, e.DenseCandidates, e.LexicalCandidates))
}

// jsonResult is the --format json shape of a search.
type jsonResult struct {
	Query   string                `json:"query"`
	Hits    []search.RetrievalHit `json:"hits"`
	Explain *search.Explain       `json:"explain,omitempty"`
}

// HitsJSON prints res as indented JSON.
func (w *Writer) HitsJSON(res *search.Result, explain bool) error {
	out := jsonResult{Query: res.Explain.Query, Hits: res.Hits}
	if out.Hits == nil {
		out.Hits = []search.RetrievalHit{}
	}
	if explain {
		out.Explain = &res.Explain
	}
	return w.JSON(out)
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Markdown prints a composed answer verbatim.
func (w *Writer) Markdown(md string) {
	_, _ = fmt.Fprintln(w.out, strings.TrimRight(md, "\n"))
}
