package async

import (
	"context"
	"log/slog"
	"sync"
)

// IndexFunc performs the build, reporting into progress.
type IndexFunc func(ctx context.Context, progress *IndexProgress) error

// BackgroundIndexer runs one build in a goroutine with progress tracking.
type BackgroundIndexer struct {
	progress *IndexProgress

	// IndexFunc is the build to run.
	IndexFunc IndexFunc

	stopCh chan struct{}
	doneCh chan struct{}

	mu       sync.Mutex
	running  bool
	started  bool
	stopOnce sync.Once
	err      error
}

// NewBackgroundIndexer creates an indexer for fn.
func NewBackgroundIndexer(fn IndexFunc) *BackgroundIndexer {
	return &BackgroundIndexer{
		progress:  NewIndexProgress(),
		IndexFunc: fn,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Progress returns the progress tracker.
func (b *BackgroundIndexer) Progress() *IndexProgress {
	return b.progress
}

// IsRunning returns true while the build runs.
func (b *BackgroundIndexer) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start begins the build and returns immediately. Later calls are no-ops.
func (b *BackgroundIndexer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.running = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *BackgroundIndexer) run(ctx context.Context) {
	defer close(b.doneCh)
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-b.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("background_index_started")
	if b.IndexFunc != nil {
		if err := b.IndexFunc(ctx, b.progress); err != nil {
			slog.Error("background_index_failed", slog.String("error", err.Error()))
			b.progress.SetError(err.Error())
			b.mu.Lock()
			b.err = err
			b.mu.Unlock()
			return
		}
	}
	b.progress.SetReady()
	slog.Info("background_index_ready")
}

// Stop cancels a running build and waits for it to return.
func (b *BackgroundIndexer) Stop() {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if !started {
		return
	}
	b.stopOnce.Do(func() { close(b.stopCh) })
	<-b.doneCh
}

// Wait blocks until the build completes and returns its error.
func (b *BackgroundIndexer) Wait() error {
	<-b.doneCh
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
