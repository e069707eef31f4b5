package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Mode selects where log records go.
type Mode int

const (
	// ModeCLI writes to the log file and mirrors records at or above StderrLevel to stderr.
	ModeCLI Mode = iota
	// ModeServer writes to the log file and mirrors every record to stderr.
	ModeServer
	// ModeStdio writes to the log file only. stdout and stderr belong to the protocol.
	ModeStdio
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum level written to the file (debug, info, warn, error).
	Level string
	// StderrLevel is the minimum level mirrored to stderr in ModeCLI.
	StderrLevel string
	// FilePath is the log file. Empty disables file logging.
	FilePath string
	// MaxSizeMB is the size in MB before rotation (default: 10).
	MaxSizeMB int
	// MaxFiles is the number of rotated files kept (default: 5).
	MaxFiles int
	// Mode selects the outputs.
	Mode Mode
}

// DefaultConfig returns file logging at info level with warnings on stderr.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		StderrLevel: "warn",
		FilePath:    DefaultLogPath(),
		MaxSizeMB:   10,
		MaxFiles:    5,
		Mode:        ModeCLI,
	}
}

// Setup builds a JSON logger for cfg and returns it with a cleanup function
// that flushes and closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var handlers []slog.Handler
	cleanup := func() {}

	if cfg.FilePath != "" {
		writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: ParseLevel(cfg.Level),
		}))
		cleanup = func() {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}

	switch cfg.Mode {
	case ModeServer:
		handlers = append(handlers, slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: ParseLevel(cfg.Level),
		}))
	case ModeCLI:
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: ParseLevel(cfg.StderrLevel),
		}))
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, nil)), cleanup, nil
	case 1:
		return slog.New(handlers[0]), cleanup, nil
	default:
		return slog.New(fanout(handlers)), cleanup, nil
	}
}

// Install sets up logging for cfg and makes it the slog default.
func Install(cfg Config) (func(), error) {
	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	slog.SetDefault(logger)

	slog.Debug("logging_initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level),
		slog.Int("mode", int(cfg.Mode)))
	return cleanup, nil
}

// ParseLevel converts a level name to slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether level is one of debug, info, warn, error.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}
