package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// HybridWatcher watches a directory tree with fsnotify, falling back to
// polling when notifications are unavailable. Events are debounced and
// delivered in batches.
type HybridWatcher struct {
	opts      Options
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	filter    *pathFilter

	events  chan []FileEvent
	errors  chan error
	stopCh  chan struct{}
	dropped atomic.Uint64

	mu      sync.RWMutex
	stopped bool
}

// NewHybridWatcher creates a watcher. It does not touch the filesystem
// until Start.
func NewHybridWatcher(opts Options) (*HybridWatcher, error) {
	opts = opts.WithDefaults()
	h := &HybridWatcher{
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 8),
		stopCh:    make(chan struct{}),
	}
	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		} else {
			h.fsw = fsw
		}
	}
	return h, nil
}

// Start watches root until ctx is cancelled or Stop is called. It blocks.
func (h *HybridWatcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", abs)
	}
	h.filter = newPathFilter(abs, h.opts)

	go h.forward()

	slog.Info("watch_started", slog.String("root", abs), slog.String("mode", h.Mode()))
	if h.fsw != nil {
		err = h.runFsnotify(ctx)
	} else {
		err = poll(ctx, h.filter, h.opts.PollInterval, h.stopCh, h.debouncer.Add, h.emitError)
	}
	_ = h.Stop()
	return err
}

func (h *HybridWatcher) runFsnotify(ctx context.Context) error {
	if err := h.watchTree(h.filter.root); err != nil {
		return fmt.Errorf("watch directories: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case ev, ok := <-h.fsw.Events:
			if !ok {
				return nil
			}
			h.handle(ev)
		case err, ok := <-h.fsw.Errors:
			if !ok {
				return nil
			}
			h.emitError(err)
		}
	}
}

// watchTree registers dir and every non-skipped directory below it.
func (h *HybridWatcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if h.filter.skipDir(path) {
			return filepath.SkipDir
		}
		return h.fsw.Add(path)
	})
}

func (h *HybridWatcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(h.filter.root, ev.Name)
	if err != nil {
		return
	}
	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}
	if h.filter.skip(rel, isDir) {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
		if isDir {
			// Files may land in the new directory before it is watched, so
			// they are picked up by the rebuild the directory event triggers.
			if err := h.watchTree(ev.Name); err != nil {
				h.emitError(err)
			}
		}
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}
	h.debouncer.Add(FileEvent{Path: rel, Operation: op, IsDir: isDir, Timestamp: time.Now()})
}

func (h *HybridWatcher) forward() {
	for batch := range h.debouncer.Output() {
		h.mu.RLock()
		if !h.stopped {
			select {
			case h.events <- batch:
			default:
				n := h.dropped.Add(1)
				slog.Warn("watch_batch_dropped",
					slog.Int("events", len(batch)),
					slog.Uint64("total_dropped", n))
			}
		}
		h.mu.RUnlock()
	}
}

func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}
	select {
	case h.errors <- err:
	default:
	}
}

// Stop releases the watcher and closes both channels. Safe to call twice.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	h.stopped = true
	close(h.stopCh)
	h.debouncer.Stop()
	if h.fsw != nil {
		_ = h.fsw.Close()
	}
	close(h.events)
	close(h.errors)
	return nil
}

// Events delivers debounced batches.
func (h *HybridWatcher) Events() <-chan []FileEvent { return h.events }

// Errors delivers non-fatal watch errors.
func (h *HybridWatcher) Errors() <-chan error { return h.errors }

// Mode is "fsnotify" or "polling".
func (h *HybridWatcher) Mode() string {
	if h.fsw != nil {
		return "fsnotify"
	}
	return "polling"
}

// DroppedBatches counts batches discarded because nobody was reading.
func (h *HybridWatcher) DroppedBatches() uint64 { return h.dropped.Load() }

// IsHealthy reports whether the watcher is still running.
func (h *HybridWatcher) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.stopped
}
