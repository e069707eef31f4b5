// Package async runs index builds in the background and tracks their progress.
package async

import (
	"context"
	"sync"
	"time"

	"github.com/Aman-CERP/reportrag/internal/ui"
)

// IndexingStatus represents the overall indexing state.
type IndexingStatus string

const (
	// StatusIndexing indicates a build is in progress.
	StatusIndexing IndexingStatus = "indexing"
	// StatusReady indicates the build finished and queries can run.
	StatusReady IndexingStatus = "ready"
	// StatusError indicates the build failed.
	StatusError IndexingStatus = "error"
)

// IndexProgressSnapshot is an immutable snapshot of indexing progress.
type IndexProgressSnapshot struct {
	Status         string  `json:"status"`
	Stage          string  `json:"stage"`
	Total          int     `json:"total"`
	Processed      int     `json:"processed"`
	CurrentFile    string  `json:"current_file,omitempty"`
	Documents      int     `json:"documents"`
	Chunks         int     `json:"chunks"`
	Warnings       int     `json:"warnings"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// IndexProgress tracks a build. It implements ui.Renderer so the index
// builder reports into it directly.
type IndexProgress struct {
	mu sync.RWMutex

	status       IndexingStatus
	stage        ui.Stage
	total        int
	processed    int
	currentFile  string
	documents    int
	chunks       int
	warnings     int
	startTime    time.Time
	errorMessage string
}

var _ ui.Renderer = (*IndexProgress)(nil)

// NewIndexProgress creates a tracker in the indexing state.
func NewIndexProgress() *IndexProgress {
	return &IndexProgress{
		status:    StatusIndexing,
		stage:     ui.StageScanning,
		startTime: time.Now(),
	}
}

// Start implements ui.Renderer.
func (p *IndexProgress) Start(context.Context) error { return nil }

// UpdateProgress records the current stage. A stage change resets the counters.
func (p *IndexProgress) UpdateProgress(ev ui.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Stage != p.stage {
		p.stage = ev.Stage
		p.total, p.processed = 0, 0
	}
	if ev.Total > 0 {
		p.total = ev.Total
	}
	if ev.Current > 0 {
		p.processed = ev.Current
	}
	p.currentFile = ev.CurrentFile
}

// AddError counts warnings. Hard errors are reported through SetError.
func (p *IndexProgress) AddError(ev ui.ErrorEvent) {
	if !ev.IsWarn {
		return
	}
	p.mu.Lock()
	p.warnings++
	p.mu.Unlock()
}

// Complete records the build totals.
func (p *IndexProgress) Complete(stats ui.CompletionStats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = ui.StageComplete
	p.documents = stats.Documents
	p.chunks = stats.Chunks
	p.total, p.processed = 1, 1
	p.currentFile = ""
}

// Stop implements ui.Renderer.
func (p *IndexProgress) Stop() error { return nil }

// SetError marks the build as failed.
func (p *IndexProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
}

// SetReady marks the build as complete.
func (p *IndexProgress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
}

// IsIndexing returns true while the build runs.
func (p *IndexProgress) IsIndexing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusIndexing
}

// Snapshot returns a copy of the current state.
func (p *IndexProgress) Snapshot() IndexProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.total > 0 {
		pct = float64(p.processed) / float64(p.total) * 100.0
	}

	return IndexProgressSnapshot{
		Status:         string(p.status),
		Stage:          p.stage.String(),
		Total:          p.total,
		Processed:      p.processed,
		CurrentFile:    p.currentFile,
		Documents:      p.documents,
		Chunks:         p.chunks,
		Warnings:       p.warnings,
		ProgressPct:    pct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		ErrorMessage:   p.errorMessage,
	}
}
