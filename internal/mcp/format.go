package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/reportrag/internal/async"
	"github.com/Aman-CERP/reportrag/internal/search"
)

// FormatAnswer renders a query answer as markdown. Statistics are appended
// when withStats is set.
func FormatAnswer(ans *search.Answer, withStats bool) string {
	var sb strings.Builder
	sb.WriteString(ans.Result.Content)
	sb.WriteString("\n")

	if len(ans.Result.Entities) > 0 {
		fmt.Fprintf(&sb, "\n---\n**Entities (%d):** %s\n", len(ans.Result.Entities), strings.Join(ans.Result.Entities, "、"))
	}
	if !withStats {
		return sb.String()
	}

	st := ans.Result.Stats
	sb.WriteString("\n## Query Statistics\n\n")
	sb.WriteString("| Field | Value |\n|-------|-------|\n")
	fmt.Fprintf(&sb, "| Query type | %s |\n", ans.QueryType)
	fmt.Fprintf(&sb, "| Strategy | %s |\n", ans.Strategy)
	fmt.Fprintf(&sb, "| Format | %s |\n", ans.Format)
	fmt.Fprintf(&sb, "| Batches | %d/%d succeeded |\n", st.SuccessfulBatches, st.TotalBatches)
	fmt.Fprintf(&sb, "| Success rate | %.0f%% |\n", st.SuccessRate*100)
	fmt.Fprintf(&sb, "| Items extracted | %d |\n", st.ItemsExtracted)
	fmt.Fprintf(&sb, "| Elapsed | %.1fs |\n", ans.Elapsed.Seconds())
	if ans.Optimized {
		sb.WriteString("| Optimized | yes |\n")
	}
	return sb.String()
}

// FormatExplanation renders a classification and its batch plan as markdown.
func FormatExplanation(exp *search.Explanation) string {
	in, plan := exp.Intent, exp.Plan

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Query Plan for \"%s\"\n\n", in.Query)
	fmt.Fprintf(&sb, "- **Type:** %s", in.Type)
	if in.Rule != "" {
		fmt.Fprintf(&sb, " (rule: %s)", in.Rule)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "- **Retrieval:** %s\n", in.Retrieval)
	if in.Scope != "" {
		fmt.Fprintf(&sb, "- **Scope:** %s\n", in.Scope)
	}
	fmt.Fprintf(&sb, "- **Format:** %s\n", plan.Format)
	fmt.Fprintf(&sb, "- **Complexity:** %s (score %d)\n", in.Complexity, in.Score)
	writeList(&sb, "Entities", in.Entities)
	writeList(&sb, "Topics", in.Topics)
	writeList(&sb, "Actions", in.Actions)

	fmt.Fprintf(&sb, "\n### Strategy: %s\n\n", plan.Strategy)
	fmt.Fprintf(&sb, "%d batch", len(plan.Batches))
	if len(plan.Batches) != 1 {
		sb.WriteString("es")
	}
	fmt.Fprintf(&sb, ", %d expected entities.\n\n", len(plan.ExpectedEntities))

	for i, b := range plan.Batches {
		fmt.Fprintf(&sb, "%d. `%s`", i+1, b.Kind)
		if b.Region != "" {
			fmt.Fprintf(&sb, " [%s]", b.Region)
		}
		if len(b.Entities) > 0 {
			fmt.Fprintf(&sb, " %s", strings.Join(b.Entities, "、"))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatIndexingProgress tells the caller a background build is still running.
func FormatIndexingProgress(snap async.IndexProgressSnapshot) string {
	return fmt.Sprintf("## Indexing in Progress\n\n"+
		"**Stage:** %s\n"+
		"**Progress:** %.1f%% (%d/%d)\n\n"+
		"Queries are available once the index is built. Please try again in a moment.",
		snap.Stage, snap.ProgressPct, snap.Processed, snap.Total)
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "- **%s:** %s\n", label, strings.Join(items, ", "))
}
