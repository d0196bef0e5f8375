// Package async runs corpus and index rebuilds in the background and
// tracks their progress for status reporting.
package async

import (
	"sync"
	"time"
)

// Status is the overall rebuild state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRebuilding Status = "rebuilding"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// Stage is the current step of a rebuild.
type Stage string

const (
	StageIngesting Stage = "ingesting"
	StageEmbedding Stage = "embedding"
	StageLoading   Stage = "loading"
)

// ProgressSnapshot is an immutable copy of rebuild progress.
type ProgressSnapshot struct {
	Status       string `json:"status"`
	Stage        string `json:"stage,omitempty"`
	Trigger      string `json:"trigger,omitempty"`
	Runs         int    `json:"runs"`
	Failures     int    `json:"failures"`
	Documents    int    `json:"documents"`
	Passages     int    `json:"passages"`
	Dense        bool   `json:"dense"`
	LastFinished string `json:"last_finished,omitempty"`
	LastDuration string `json:"last_duration,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Progress tracks rebuilds. It is safe for concurrent use.
type Progress struct {
	mu sync.RWMutex

	status       Status
	stage        Stage
	trigger      string
	runs         int
	failures     int
	documents    int
	passages     int
	dense        bool
	started      time.Time
	lastFinished time.Time
	lastDuration time.Duration
	errorMessage string
}

// NewProgress creates an idle tracker.
func NewProgress() *Progress {
	return &Progress{status: StatusIdle}
}

// Begin marks a rebuild as started for trigger.
func (p *Progress) Begin(trigger string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusRebuilding
	p.stage = StageIngesting
	p.trigger = trigger
	p.started = time.Now()
	p.runs++
}

// SetStage updates the current stage.
func (p *Progress) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
}

// SetCorpus records the ingest outcome.
func (p *Progress) SetCorpus(documents, passages int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.documents = documents
	p.passages = passages
}

// SetDense records whether the last build produced embeddings.
func (p *Progress) SetDense(dense bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dense = dense
}

// Finish marks the current rebuild as done. A non-nil err keeps the
// previous artifacts in service and is reported until the next success.
func (p *Progress) Finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = ""
	p.lastFinished = time.Now()
	p.lastDuration = p.lastFinished.Sub(p.started)
	if err != nil {
		p.status = StatusError
		p.errorMessage = err.Error()
		p.failures++
		return
	}
	p.status = StatusReady
	p.errorMessage = ""
}

// IsRebuilding reports whether a rebuild is in progress.
func (p *Progress) IsRebuilding() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status == StatusRebuilding
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := ProgressSnapshot{
		Status:       string(p.status),
		Stage:        string(p.stage),
		Trigger:      p.trigger,
		Runs:         p.runs,
		Failures:     p.failures,
		Documents:    p.documents,
		Passages:     p.passages,
		Dense:        p.dense,
		ErrorMessage: p.errorMessage,
	}
	if !p.lastFinished.IsZero() {
		s.LastFinished = p.lastFinished.Format(time.RFC3339)
		s.LastDuration = p.lastDuration.Round(time.Millisecond).String()
	}
	return s
}
