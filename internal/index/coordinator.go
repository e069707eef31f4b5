package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Aman-CERP/reportrag/internal/watcher"
)

// Rebuilder is the part of Builder the Coordinator drives.
type Rebuilder interface {
	Build(ctx context.Context, opts BuildOptions) (*BuildResult, error)
}

// Coordinator turns batches of document changes into full rebuilds. Builds
// never overlap; a batch that arrives during a build waits for it.
type Coordinator struct {
	builder Rebuilder
	onBuilt func(*BuildResult)

	mu         sync.Mutex
	rebuilds   int
	lastErr    error
	lastResult *BuildResult
	lastAt     time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// OnRebuilt registers a callback run after each successful rebuild.
func OnRebuilt(fn func(*BuildResult)) CoordinatorOption {
	return func(c *Coordinator) { c.onBuilt = fn }
}

// NewCoordinator creates a Coordinator for b.
func NewCoordinator(b Rebuilder, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{builder: b}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Relevant reports whether any event in the batch touches a document the
// builder reads. Directory events always count since a moved directory can
// carry reports with it.
func Relevant(events []watcher.FileEvent) bool {
	for _, ev := range events {
		if ev.IsDir || IsSupported(filepath.Base(ev.Path)) {
			return true
		}
	}
	return false
}

// HandleEvents rebuilds the index when the batch is relevant. It returns
// whether a rebuild ran.
func (c *Coordinator) HandleEvents(ctx context.Context, events []watcher.FileEvent) (bool, error) {
	if !Relevant(events) {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	slog.Info("index_rebuild_triggered", slog.Int("events", len(events)), slog.String("first", events[0].Path))
	res, err := c.builder.Build(ctx, BuildOptions{Force: true})
	c.lastAt = time.Now()
	c.lastErr = err
	if err != nil {
		slog.Error("index_rebuild_failed", slog.String("error", err.Error()))
		return true, err
	}
	c.rebuilds++
	c.lastResult = res
	if c.onBuilt != nil {
		c.onBuilt(res)
	}
	return true, nil
}

// Run consumes batches until the channel closes or ctx is done.
// Rebuild failures are logged and do not stop the loop.
func (c *Coordinator) Run(ctx context.Context, batches <-chan []watcher.FileEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			_, _ = c.HandleEvents(ctx, batch)
		}
	}
}

// CoordinatorStatus summarizes watch-triggered rebuilds.
type CoordinatorStatus struct {
	Rebuilds   int          `json:"rebuilds"`
	LastAt     time.Time    `json:"last_at,omitzero"`
	LastError  string       `json:"last_error,omitempty"`
	LastResult *BuildResult `json:"last_result,omitempty"`
}

// Status returns a snapshot of rebuild history.
func (c *Coordinator) Status() CoordinatorStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := CoordinatorStatus{Rebuilds: c.rebuilds, LastAt: c.lastAt, LastResult: c.lastResult}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}
