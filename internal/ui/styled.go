package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

const barWidth = 24

// StyledRenderer prints lipgloss-styled progress lines for interactive
// terminals. Embedding progress redraws in place.
type StyledRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	styles  Styles
	inPlace bool // last line was a carriage-return progress line
}

// NewStyledRenderer creates a styled renderer.
func NewStyledRenderer(cfg Config) *StyledRenderer {
	return &StyledRenderer{out: cfg.Output, styles: GetStyles(cfg.NoColor)}
}

// Start implements Renderer.
func (r *StyledRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *StyledRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stage := r.styles.Stage.Render(fmt.Sprintf("%-9s", event.Stage.String()))
	if event.Total > 0 {
		bar := r.styles.Success.Render(progressBar(event.Current, event.Total, barWidth))
		_, _ = fmt.Fprintf(r.out, "\r%s %s %d/%d %s", stage, bar, event.Current, event.Total,
			r.styles.Label.Render(event.Message))
		r.inPlace = true
		if event.Current >= event.Total {
			r.endLine()
		}
		return
	}
	r.endLine()
	_, _ = fmt.Fprintf(r.out, "%s %s\n", stage, event.Message)
}

// AddError implements Renderer.
func (r *StyledRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endLine()
	style, prefix := r.styles.Error, "error"
	if event.IsWarn {
		style, prefix = r.styles.Warning, "warn"
	}
	msg := event.Err.Error()
	if event.File != "" {
		msg = event.File + ": " + msg
	}
	_, _ = fmt.Fprintf(r.out, "%s %s\n", style.Render(prefix), msg)
}

// Complete implements Renderer.
func (r *StyledRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endLine()
	lines := summaryLines(stats)
	lines[0] = r.styles.Header.Render(lines[0])
	_, _ = fmt.Fprintln(r.out, r.styles.Panel.Render(strings.Join(lines, "\n")))
}

// Stop implements Renderer.
func (r *StyledRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
	return nil
}

func (r *StyledRenderer) endLine() {
	if r.inPlace {
		_, _ = fmt.Fprintln(r.out)
		r.inPlace = false
	}
}

// progressBar renders a fixed-width text bar.
func progressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := int(float64(current) / float64(total) * float64(width))
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
