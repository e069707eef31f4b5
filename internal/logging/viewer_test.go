package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

const sampleLog = `{"time":"2026-01-05T10:00:00.000Z","level":"DEBUG","msg":"app_opened","chunks":12}
{"time":"2026-01-05T10:00:01.000Z","level":"INFO","msg":"query_reports started","request_id":"ab12cd34"}
not json at all
{"time":"2026-01-05T10:00:02.000Z","level":"WARN","msg":"batch_retry","batch":3,"attempt":2}
{"time":"2026-01-05T10:00:03.000Z","level":"ERROR","msg":"batch_failed","batch":3}
`

func TestViewer_ParseLine(t *testing.T) {
	v := NewViewer(ViewerConfig{})

	e := v.ParseLine(`{"time":"2026-01-05T10:00:02.5Z","level":"WARN","msg":"batch_retry","batch":3}`)
	if !e.Valid {
		t.Fatal("expected a valid entry")
	}
	if e.Level != "WARN" || e.Msg != "batch_retry" {
		t.Errorf("unexpected level/msg: %s %s", e.Level, e.Msg)
	}
	if e.Time.IsZero() {
		t.Error("expected time to be parsed")
	}
	if len(e.Attrs) != 1 || e.Attrs["batch"] != float64(3) {
		t.Errorf("unexpected attrs: %v", e.Attrs)
	}

	raw := v.ParseLine("panic: boom")
	if raw.Valid || raw.Raw != "panic: boom" {
		t.Errorf("non-JSON line should keep only Raw: %+v", raw)
	}
}

func TestViewer_TailAll(t *testing.T) {
	v := NewViewer(ViewerConfig{})

	entries, err := v.Tail(strings.NewReader(sampleLog), 50)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	if entries[0].Msg != "app_opened" || entries[4].Msg != "batch_failed" {
		t.Errorf("entries out of order: %s ... %s", entries[0].Msg, entries[4].Msg)
	}
}

func TestViewer_TailKeepsLastN(t *testing.T) {
	v := NewViewer(ViewerConfig{})

	entries, err := v.Tail(strings.NewReader(sampleLog), 2)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Msg != "batch_retry" || entries[1].Msg != "batch_failed" {
		t.Errorf("expected the last two records, got %s, %s", entries[0].Msg, entries[1].Msg)
	}
}

func TestViewer_TailZero(t *testing.T) {
	entries, err := NewViewer(ViewerConfig{}).Tail(strings.NewReader(sampleLog), 0)
	if err != nil || len(entries) != 0 {
		t.Errorf("expected nothing, got %d entries (err %v)", len(entries), err)
	}
}

func TestViewer_LevelFilter(t *testing.T) {
	v := NewViewer(ViewerConfig{MinLevel: "warn"})

	entries, err := v.Tail(strings.NewReader(sampleLog), 50)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected WARN and ERROR only, got %d entries", len(entries))
	}
	for _, e := range entries {
		if e.Level != "WARN" && e.Level != "ERROR" {
			t.Errorf("unexpected level %s", e.Level)
		}
	}
}

func TestViewer_PatternFilter(t *testing.T) {
	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`batch_\w+`)})

	entries, err := v.Tail(strings.NewReader(sampleLog), 50)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 batch entries, got %d", len(entries))
	}
}

func TestViewer_Format(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true})
	e := v.ParseLine(`{"time":"2026-01-05T10:00:02Z","level":"WARN","msg":"batch_retry","batch":3,"attempt":2}`)

	got := v.Format(e)

	if !strings.Contains(got, "WARN  batch_retry attempt=2 batch=3") {
		t.Errorf("unexpected format: %q", got)
	}
	if got := v.Format(v.ParseLine("plain text")); got != "plain text" {
		t.Errorf("raw line should print unchanged, got %q", got)
	}
}

func TestViewer_TailFileMissing(t *testing.T) {
	_, err := NewViewer(ViewerConfig{}).TailFile(filepath.Join(t.TempDir(), "missing.log"), 10)
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestViewer_Follow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	if err := os.WriteFile(path, []byte(sampleLog), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Entry, 64)
	done := make(chan error, 1)
	v := NewViewer(ViewerConfig{MinLevel: "info"})
	go func() {
		done <- v.Follow(ctx, path, func(e Entry) {
			select {
			case got <- e:
			default:
			}
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case e := <-got:
			if e.Msg == "app_opened" || e.Msg == "batch_failed" {
				t.Fatalf("existing line %q should not be replayed", e.Msg)
			}
			if e.Msg != "tick" {
				t.Fatalf("unexpected entry %q", e.Msg)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Follow returned error: %v", err)
			}
			return
		case <-tick.C:
			_, _ = fmt.Fprintln(f, `{"time":"2026-01-05T10:00:04Z","level":"DEBUG","msg":"hidden"}`)
			_, _ = fmt.Fprintln(f, `{"time":"2026-01-05T10:00:04Z","level":"INFO","msg":"tick"}`)
		case <-deadline:
			t.Fatal("no entry followed within 5s")
		}
	}
}
