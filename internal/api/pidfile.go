package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// PIDFileName is the server record inside the data directory.
const PIDFileName = "serve.json"

// ErrNoServer is returned when no server record exists.
var ErrNoServer = errors.New("no server record")

// ServerRecord identifies a running server.
type ServerRecord struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

// PIDFile stores the ServerRecord of the serving process.
type PIDFile struct {
	path string
}

// NewPIDFile returns the record file for dataDir.
func NewPIDFile(dataDir string) *PIDFile {
	return &PIDFile{path: filepath.Join(dataDir, PIDFileName)}
}

// Path returns the file location.
func (p *PIDFile) Path() string { return p.path }

// Write records the current process as serving on addr.
func (p *PIDFile) Write(addr string) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	data, err := json.Marshal(ServerRecord{PID: os.Getpid(), Addr: addr, StartedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Read returns the stored record.
func (p *PIDFile) Read() (*ServerRecord, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoServer
	}
	if err != nil {
		return nil, fmt.Errorf("read pid file: %w", err)
	}
	var rec ServerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("invalid pid file: %w", err)
	}
	return &rec, nil
}

// Remove deletes the record. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// Running returns the record when its process is still alive. Stale records
// are removed.
func (p *PIDFile) Running() (*ServerRecord, bool) {
	rec, err := p.Read()
	if err != nil {
		return nil, false
	}
	if !processExists(rec.PID) {
		_ = p.Remove()
		return nil, false
	}
	return rec, true
}

func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 probes for existence.
	return proc.Signal(syscall.Signal(0)) == nil
}
