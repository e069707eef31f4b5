package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// EntityLine is the per-entity row of the status view.
type EntityLine struct {
	Entity     string `json:"entity"`
	Chunks     int    `json:"chunks"`
	TotalChars int    `json:"total_chars"`
}

// StatusInfo describes the index and the configured services.
type StatusInfo struct {
	Built      bool           `json:"built"`
	Documents  int            `json:"documents"`
	Chunks     int            `json:"chunks"`
	Entities   []EntityLine   `json:"entities"`
	Categories map[string]int `json:"categories"`
	BuiltAt    time.Time      `json:"built_at,omitzero"`

	// Storage sizes in bytes.
	ChunksSize   int64 `json:"chunks_size"`
	VectorsSize  int64 `json:"vectors_size"`
	KeywordsSize int64 `json:"keywords_size"`

	EmbedderModel  string `json:"embedder_model,omitempty"`
	EmbedderStatus string `json:"embedder_status"` // ready, offline, error
	LLMModel       string `json:"llm_model,omitempty"`
	LLMStatus      string `json:"llm_status"` // ready, offline, error, unchecked
}

// StatusRenderer prints StatusInfo.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render prints a human-readable summary.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintln(r.out, r.styles.Header.Render("Index status"))
	_, _ = fmt.Fprintln(r.out)

	if !info.Built {
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Warning.Render("not built (run 'reportrag index')"))
	} else {
		_, _ = fmt.Fprintf(r.out, "  Documents:  %d\n", info.Documents)
		_, _ = fmt.Fprintf(r.out, "  Chunks:     %d\n", info.Chunks)
		_, _ = fmt.Fprintf(r.out, "  Entities:   %d\n", len(info.Entities))
		if !info.BuiltAt.IsZero() {
			_, _ = fmt.Fprintf(r.out, "  Built:      %s\n", formatTime(info.BuiltAt))
		}
	}
	_, _ = fmt.Fprintln(r.out)

	if len(info.Categories) > 0 {
		names := make([]string, 0, len(info.Categories))
		for c := range info.Categories {
			names = append(names, c)
		}
		sort.Strings(names)
		_, _ = fmt.Fprintln(r.out, "  Categories:")
		for _, c := range names {
			_, _ = fmt.Fprintf(r.out, "    %-10s %d\n", c, info.Categories[c])
		}
		_, _ = fmt.Fprintln(r.out)
	}

	_, _ = fmt.Fprintln(r.out, "  Storage:")
	_, _ = fmt.Fprintf(r.out, "    Chunks:   %s\n", FormatBytes(info.ChunksSize))
	_, _ = fmt.Fprintf(r.out, "    Vectors:  %s\n", FormatBytes(info.VectorsSize))
	_, _ = fmt.Fprintf(r.out, "    Keywords: %s\n", FormatBytes(info.KeywordsSize))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Embedder: %s %s\n", info.EmbedderModel, r.renderStatus(info.EmbedderStatus))
	_, _ = fmt.Fprintf(r.out, "  LLM:      %s %s\n", info.LLMModel, r.renderStatus(info.LLMStatus))
	return nil
}

// RenderJSON prints info as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	label := "(" + status + ")"
	switch status {
	case "ready":
		return r.styles.Success.Render(label)
	case "offline", "unchecked":
		return r.styles.Warning.Render(label)
	case "error":
		return r.styles.Error.Render(label)
	default:
		return label
	}
}

func formatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats a byte count for display.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
