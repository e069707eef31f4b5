package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.reportrag/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".reportrag", "logs")
	}
	return filepath.Join(home, ".reportrag", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// LogPathIn returns the log file path inside dir, or the default path when dir is empty.
func LogPathIn(dir string) string {
	if dir == "" {
		return DefaultLogPath()
	}
	return filepath.Join(dir, "server.log")
}
