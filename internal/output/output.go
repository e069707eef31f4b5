// Package output formats CLI messages, query answers and query plans.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/reportrag/internal/search"
	"github.com/Aman-CERP/reportrag/internal/ui"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New creates a Writer. Color is enabled only when out is a terminal.
func New(out io.Writer) *Writer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	return NewWithColor(out, color)
}

// NewWithColor creates a Writer with an explicit color preference.
func NewWithColor(out io.Writer, color bool) *Writer {
	return &Writer{out: out, styles: ui.GetStyles(!color)}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", w.styles.Success.Render(msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.Warning.Render(msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.styles.Error.Render(msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints an indented block.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// KeyValue prints a labeled value aligned at width.
func (w *Writer) KeyValue(label string, value any, width int) {
	pad := max(width-len(label), 0)
	_, _ = fmt.Fprintf(w.out, "  %s%s %v\n", w.styles.Label.Render(label+":"), strings.Repeat(" ", pad), value)
}

// Answer prints a query answer. Batch statistics follow when withStats is set.
func (w *Writer) Answer(ans *search.Answer, withStats bool) {
	_, _ = fmt.Fprintln(w.out, ans.Result.Content)
	if len(ans.Result.Entities) > 0 {
		_, _ = fmt.Fprintf(w.out, "\n%s %s\n",
			w.styles.Label.Render(fmt.Sprintf("涉及地区 (%d):", len(ans.Result.Entities))),
			strings.Join(ans.Result.Entities, "、"))
	}
	if !withStats {
		return
	}

	st := ans.Result.Stats
	w.Newline()
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Query statistics"))
	w.KeyValue("Type", ans.QueryType, 10)
	w.KeyValue("Strategy", ans.Strategy, 10)
	w.KeyValue("Format", ans.Format, 10)
	w.KeyValue("Batches", fmt.Sprintf("%d/%d succeeded (%.0f%%)", st.SuccessfulBatches, st.TotalBatches, st.SuccessRate*100), 10)
	w.KeyValue("Items", st.ItemsExtracted, 10)
	w.KeyValue("Elapsed", fmt.Sprintf("%.1fs", ans.Elapsed.Seconds()), 10)
	for _, b := range ans.Batches {
		if !b.Success {
			w.Warningf("batch %d (%s) failed: %s", b.Index+1, b.Kind, b.ErrorMessage())
		}
	}
}

// Plan prints how a query would be classified and batched.
func (w *Writer) Plan(exp *search.Explanation) {
	in, plan := exp.Intent, exp.Plan

	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Query plan"))
	w.KeyValue("Query", in.Query, 10)
	typ := string(in.Type)
	if in.Rule != "" {
		typ += " (" + in.Rule + ")"
	}
	w.KeyValue("Type", typ, 10)
	w.KeyValue("Retrieval", in.Retrieval, 10)
	if in.Scope != "" {
		w.KeyValue("Scope", in.Scope, 10)
	}
	w.KeyValue("Format", plan.Format, 10)
	w.KeyValue("Complexity", fmt.Sprintf("%s (score %d)", in.Complexity, in.Score), 10)
	if len(in.Entities) > 0 {
		w.KeyValue("Entities", strings.Join(in.Entities, "、"), 10)
	}
	if len(in.Topics) > 0 {
		w.KeyValue("Topics", strings.Join(in.Topics, ", "), 10)
	}
	w.KeyValue("Strategy", plan.Strategy, 10)

	w.Newline()
	for i, b := range plan.Batches {
		line := fmt.Sprintf("%2d. %-13s", i+1, b.Kind)
		if b.Region != "" {
			line += " [" + b.Region + "]"
		}
		if len(b.Entities) > 0 {
			line += " " + strings.Join(b.Entities, "、")
		}
		_, _ = fmt.Fprintln(w.out, line)
	}
}
