package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
)

// maxLineSize bounds a single log line read by the viewer.
const maxLineSize = 1024 * 1024

// Entry is one line of the JSON log file.
type Entry struct {
	Time  time.Time
	Level string
	Msg   string
	Attrs map[string]any
	Raw   string
	// Valid is false for lines that are not JSON records; they print as Raw.
	Valid bool
}

// ViewerConfig filters and styles log output.
type ViewerConfig struct {
	// MinLevel hides records below it. Empty shows every line.
	MinLevel string
	// Pattern, when set, keeps only lines whose raw text matches.
	Pattern *regexp.Regexp
	NoColor bool
}

// Viewer reads, filters and formats log files written by Setup.
type Viewer struct {
	cfg    ViewerConfig
	min    slog.Level
	levels map[string]lipgloss.Style
	dim    lipgloss.Style
}

// NewViewer creates a viewer.
func NewViewer(cfg ViewerConfig) *Viewer {
	return &Viewer{
		cfg: cfg,
		min: ParseLevel(cfg.MinLevel),
		levels: map[string]lipgloss.Style{
			"DEBUG": lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
			"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
			"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
			"ERROR": lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
		dim: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// ParseLine decodes a JSON log record. Invalid lines keep only Raw.
func (v *Viewer) ParseLine(line string) Entry {
	e := Entry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return e
	}
	e.Valid = true

	if s, ok := data[slog.TimeKey].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			e.Time = t
		}
	}
	e.Level, _ = data[slog.LevelKey].(string)
	e.Msg, _ = data[slog.MessageKey].(string)

	delete(data, slog.TimeKey)
	delete(data, slog.LevelKey)
	delete(data, slog.MessageKey)
	e.Attrs = data
	return e
}

// Match reports whether e passes the level and pattern filters.
func (v *Viewer) Match(e Entry) bool {
	if v.cfg.MinLevel != "" {
		if !e.Valid || ParseLevel(e.Level) < v.min {
			return false
		}
	}
	if v.cfg.Pattern != nil && !v.cfg.Pattern.MatchString(e.Raw) {
		return false
	}
	return true
}

// Tail returns the last n matching entries from r.
func (v *Viewer) Tail(r io.Reader, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	ring := make([]Entry, 0, n)
	next := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		e := v.ParseLine(line)
		if !v.Match(e) {
			continue
		}
		if len(ring) < n {
			ring = append(ring, e)
			continue
		}
		ring[next] = e
		next = (next + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}

	return append(ring[next:], ring[:next]...), nil
}

// TailFile returns the last n matching entries of the file at path.
func (v *Viewer) TailFile(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return v.Tail(f, n)
}

// Follow emits matching entries appended to path until ctx is done. Lines
// already in the file are skipped. A rotated file is reopened.
func (v *Viewer) Follow(ctx context.Context, path string, emit func(Entry)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	reader := bufio.NewReader(f)
	var partial string
	drain := func() {
		for {
			chunk, err := reader.ReadString('\n')
			if err != nil {
				partial += chunk
				return
			}
			line := strings.TrimRight(partial+chunk, "\r\n")
			partial = ""
			if line == "" {
				continue
			}
			if e := v.ParseLine(line); v.Match(e) {
				emit(e)
			}
		}
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("failed to watch log file: %w", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write):
				drain()
			case ev.Has(fsnotify.Create):
				drain()
				nf, err := os.Open(path)
				if err != nil {
					continue
				}
				_ = f.Close()
				f = nf
				reader = bufio.NewReader(f)
				partial = ""
				drain()
			}
		}
	}
}

// Format renders e as "15:04:05.000 LEVEL msg key=value ...". Attributes are
// sorted by key.
func (v *Viewer) Format(e Entry) string {
	if !e.Valid {
		return e.Raw
	}

	level := fmt.Sprintf("%-5s", e.Level)
	ts := e.Time.Local().Format("15:04:05.000")
	if !v.cfg.NoColor {
		if style, ok := v.levels[e.Level]; ok {
			level = style.Render(level)
		}
		ts = v.dim.Render(ts)
	}

	var b strings.Builder
	b.WriteString(ts)
	b.WriteByte(' ')
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(e.Msg)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
	}
	return b.String()
}

// Print writes entries to out, one per line.
func (v *Viewer) Print(out io.Writer, entries []Entry) {
	for _, e := range entries {
		_, _ = fmt.Fprintln(out, v.Format(e))
	}
}
