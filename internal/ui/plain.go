package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	stage  Stage
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	// Format: [STAGE] current/total - message
	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, event.Message)
	} else if event.Message != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), event.Message)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}

	if event.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.File, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range summaryLines(stats) {
		_, _ = fmt.Fprintln(r.out, line)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

// summaryLines renders completion stats; shared by both renderers.
func summaryLines(stats CompletionStats) []string {
	head := fmt.Sprintf("Complete: %d passages", stats.Passages)
	if stats.Documents > 0 {
		head += fmt.Sprintf(" from %d documents", stats.Documents)
	}
	head += fmt.Sprintf(" in %s", stats.Duration.Round(100*time.Millisecond))
	if stats.Warnings > 0 {
		head += fmt.Sprintf(" (%d warnings)", stats.Warnings)
	}
	lines := []string{head}

	if stats.Stages.Embed > 0 || stats.Stages.Write > 0 {
		lines = append(lines, "Stage Breakdown:",
			fmt.Sprintf("  Read:  %s", stats.Stages.Read.Round(time.Millisecond)))
		if stats.Stages.Embed > 0 && stats.Passages > 0 {
			perSec := float64(stats.Passages) / stats.Stages.Embed.Seconds()
			lines = append(lines, fmt.Sprintf("  Embed: %s (%d passages @ %.1f/sec)",
				stats.Stages.Embed.Round(time.Millisecond), stats.Passages, perSec))
		}
		lines = append(lines, fmt.Sprintf("  Write: %s", stats.Stages.Write.Round(time.Millisecond)))
	}

	switch {
	case stats.Embedder.Provider != "":
		lines = append(lines, fmt.Sprintf("Embeddings: %s (%d dims)", stats.Embedder.Provider, stats.Embedder.Dimensions))
	case stats.Stages.Embed > 0:
		lines = append(lines, "Embeddings: unavailable (lexical-only index)")
	}
	return lines
}
