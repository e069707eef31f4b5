// Package logging configures the process-wide slog logger for reportrag.
//
// Logs are JSON lines written to a size-rotated file under ~/.reportrag/logs/.
// The CLI also mirrors warnings to stderr; the MCP stdio server never touches
// stdout or stderr because both carry protocol traffic.
package logging
