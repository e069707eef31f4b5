package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// snapshot records every reported path under the filter's root.
func snapshot(f *pathFilter) (map[string]fileSnapshot, error) {
	files := make(map[string]fileSnapshot)
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == f.root {
				return err
			}
			return nil
		}
		if d.IsDir() && f.skipDir(path) {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil || f.skip(rel, d.IsDir()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files[rel] = fileSnapshot{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()}
		return nil
	})
	return files, err
}

// diff lists the changes from prev to cur, sorted by path.
func diff(prev, cur map[string]fileSnapshot, now time.Time) []FileEvent {
	var events []FileEvent
	for rel, snap := range cur {
		old, ok := prev[rel]
		switch {
		case !ok:
			events = append(events, FileEvent{Path: rel, Operation: OpCreate, IsDir: snap.isDir, Timestamp: now})
		case !snap.isDir && (old.modTime != snap.modTime || old.size != snap.size):
			events = append(events, FileEvent{Path: rel, Operation: OpModify, Timestamp: now})
		}
	}
	for rel, snap := range prev {
		if _, ok := cur[rel]; !ok {
			events = append(events, FileEvent{Path: rel, Operation: OpDelete, IsDir: snap.isDir, Timestamp: now})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

// poll rescans the tree every interval until ctx is done or stop closes,
// passing each change to emit.
func poll(ctx context.Context, f *pathFilter, interval time.Duration, stop <-chan struct{}, emit func(FileEvent), fail func(error)) error {
	prev, err := snapshot(f)
	if err != nil {
		return fmt.Errorf("initial scan of %s: %w", f.root, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			cur, err := snapshot(f)
			if err != nil {
				fail(fmt.Errorf("rescan %s: %w", f.root, err))
				continue
			}
			for _, ev := range diff(prev, cur, time.Now()) {
				emit(ev)
			}
			prev = cur
		}
	}
}
