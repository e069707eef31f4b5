package preflight

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/reportrag/pkg/version"
)

// MarkerFile records the last passing doctor run inside the data directory.
const MarkerFile = "preflight.json"

// Marker is the content of MarkerFile.
type Marker struct {
	PassedAt time.Time `json:"passed_at"`
	Version  string    `json:"version"`
}

func markerPath(dataDir string) string {
	return filepath.Join(dataDir, MarkerFile)
}

// ReadMarker returns the recorded pass, or fs.ErrNotExist when there is none.
func ReadMarker(dataDir string) (*Marker, error) {
	data, err := os.ReadFile(markerPath(dataDir))
	if err != nil {
		return nil, err
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid preflight marker: %w", err)
	}
	return &m, nil
}

// NeedsCheck reports whether checks should run: no pass is recorded, the
// record is unreadable, or it was written by another reportrag version.
func NeedsCheck(dataDir string) bool {
	m, err := ReadMarker(dataDir)
	if err != nil {
		return true
	}
	return m.Version != version.Version
}

// MarkPassed records a pass for the running version.
func MarkPassed(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := json.Marshal(Marker{PassedAt: time.Now().UTC(), Version: version.Version})
	if err != nil {
		return err
	}
	return os.WriteFile(markerPath(dataDir), data, 0o644)
}

// ClearMarker forgets the recorded pass. A missing marker is not an error.
func ClearMarker(dataDir string) error {
	if err := os.Remove(markerPath(dataDir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove preflight marker: %w", err)
	}
	return nil
}
