package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	if filepath.Base(path) != "server.log" {
		t.Errorf("DefaultLogPath should end with server.log, got: %s", path)
	}
	if !strings.Contains(path, ".reportrag") {
		t.Errorf("DefaultLogPath should live under .reportrag, got: %s", path)
	}
}

func TestLogPathIn(t *testing.T) {
	if got := LogPathIn("/var/log/rr"); got != filepath.Join("/var/log/rr", "server.log") {
		t.Errorf("unexpected path: %s", got)
	}
	if got := LogPathIn(""); got != DefaultLogPath() {
		t.Errorf("empty dir should use default path, got: %s", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.StderrLevel != "warn" {
		t.Errorf("expected stderr level 'warn', got: %s", cfg.StderrLevel)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxFiles != 5 {
		t.Errorf("unexpected rotation limits: %d MB, %d files", cfg.MaxSizeMB, cfg.MaxFiles)
	}
	if cfg.Mode != ModeCLI {
		t.Errorf("expected ModeCLI, got: %d", cfg.Mode)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if ValidLevel("verbose") {
		t.Error("verbose should not be a valid level")
	}
	if !ValidLevel("debug") {
		t.Error("debug should be a valid level")
	}
}

func TestSetup_StdioWritesJSONToFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, cleanup, err := Setup(Config{
		Level:    "debug",
		FilePath: path,
		Mode:     ModeStdio,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logger.Info("batch_complete", slog.Int("index", 2), slog.String("entity", "广东"))
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if rec["msg"] != "batch_complete" {
		t.Errorf("unexpected msg: %v", rec["msg"])
	}
	if rec["entity"] != "广东" {
		t.Errorf("unexpected entity: %v", rec["entity"])
	}
}

func TestSetup_RespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path, Mode: ModeStdio})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	cleanup()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(string(data), "shown") {
		t.Error("warn record should be written")
	}
}

func TestSetup_NoOutputsDiscards(t *testing.T) {
	logger, cleanup, err := Setup(Config{Mode: ModeStdio})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()
	logger.Error("dropped")
}

func TestFanout_DispatchesByLevel(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := fanout{
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}
	logger := slog.New(h).With(slog.String("component", "engine"))

	logger.Debug("plan_built")
	logger.Warn("batch_failed")

	if !strings.Contains(debugBuf.String(), "plan_built") || !strings.Contains(debugBuf.String(), "batch_failed") {
		t.Errorf("debug handler missing records: %s", debugBuf.String())
	}
	if strings.Contains(warnBuf.String(), "plan_built") {
		t.Error("warn handler should not receive debug records")
	}
	if !strings.Contains(warnBuf.String(), `"component":"engine"`) {
		t.Errorf("attrs not propagated: %s", warnBuf.String())
	}
	if h.Enabled(context.Background(), slog.LevelDebug-4) {
		t.Error("no handler accepts trace level")
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	w, err := NewRotatingWriter(path, 1, 3)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = w.Close() }()

	line := bytes.Repeat([]byte("x"), 400*1024)
	for i := 0; i < 4; i++ {
		if _, err := w.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("expected rotated file %s.1: %v", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat current: %v", err)
	}
	if info.Size() > 1024*1024 {
		t.Errorf("current file exceeds max size: %d", info.Size())
	}
}

func TestRotatingWriter_MaxFilesLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	w, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = w.Close() }()

	chunk := bytes.Repeat([]byte("y"), 700*1024)
	for i := 0; i < 6; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".2"); err != nil {
		t.Errorf("expected %s.2 to exist: %v", path, err)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("expected %s.3 to be pruned", path)
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	w, err := NewRotatingWriter(path, 10, 5)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = fmt.Fprintf(w, "line %d\n", i)
		}(i)
	}
	wg.Wait()
	_ = w.Close()

	data, _ := os.ReadFile(path)
	if got := strings.Count(string(data), "\n"); got != 20 {
		t.Errorf("expected 20 lines, got %d", got)
	}
}

func TestRotatingWriter_CloseTwice(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "server.log"), 1, 1)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Errorf("sync after close should be a no-op: %v", err)
	}
}
