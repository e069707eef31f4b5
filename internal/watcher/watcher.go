// Package watcher reports changes under the documents directory so a running
// server can rebuild its index. fsnotify is used when available; otherwise
// the directory is polled.
package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Operation is the kind of change observed for a path.
type Operation int

const (
	// OpCreate indicates a new file or directory.
	OpCreate Operation = iota
	// OpModify indicates changed content.
	OpModify
	// OpDelete indicates a removed file or directory.
	OpDelete
	// OpRename indicates the path was moved away.
	OpRename
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change.
type FileEvent struct {
	// Path is relative to the watched root, using the OS separator.
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Options configures a watcher.
type Options struct {
	// DebounceWindow is the quiet period before a batch is emitted.
	DebounceWindow time.Duration

	// PollInterval applies only to the polling fallback.
	PollInterval time.Duration

	// ForcePolling skips fsnotify, for filesystems that do not deliver
	// notifications (network mounts, some containers).
	ForcePolling bool

	// EventBufferSize bounds the number of undelivered batches.
	EventBufferSize int

	// IgnoreDirs are directories that are never watched, typically the
	// index data directory when it lives under the documents root.
	IgnoreDirs []string

	// Filter, when set, drops file events whose relative path it rejects.
	// Directory events are not filtered.
	Filter func(relPath string) bool
}

// DefaultOptions returns options tuned for hand-edited report files.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  time.Second,
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults fills zero fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = def.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = def.EventBufferSize
	}
	return o
}

// pathFilter decides which paths under root are reported.
type pathFilter struct {
	root   string
	ignore map[string]bool
	accept func(string) bool
}

func newPathFilter(root string, opts Options) *pathFilter {
	f := &pathFilter{root: root, ignore: make(map[string]bool), accept: opts.Filter}
	for _, dir := range opts.IgnoreDirs {
		if abs, err := filepath.Abs(dir); err == nil {
			f.ignore[abs] = true
		}
	}
	return f
}

// skipDir reports whether the directory at abs is excluded, along with
// everything below it. The root itself is never skipped.
func (f *pathFilter) skipDir(abs string) bool {
	if abs == f.root {
		return false
	}
	return f.ignore[abs] || hidden(filepath.Base(abs))
}

// skip reports whether an event for rel should be dropped.
func (f *pathFilter) skip(rel string, isDir bool) bool {
	if rel == "" || rel == "." {
		return true
	}
	parts := strings.Split(rel, string(filepath.Separator))
	for i, part := range parts {
		if hidden(part) {
			return true
		}
		if f.ignore[filepath.Join(f.root, filepath.Join(parts[:i+1]...))] {
			return true
		}
	}
	if isDir || f.accept == nil {
		return false
	}
	return !f.accept(rel)
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
