package aggregate

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/reportrag/internal/catalog"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
)

// charsPerToken is the rough rune-per-token ratio for Chinese text.
const charsPerToken = 1.5

// Aggregator merges batch results. It holds no mutable state.
type Aggregator struct {
	cat *catalog.Catalog
}

// New creates an aggregator over the given catalog.
func New(cat *catalog.Catalog) *Aggregator {
	return &Aggregator{cat: cat}
}

// Aggregate folds batch results into one answer rendered as f. Entities in
// expected that yield no items are still rendered, with the placeholder.
//
// When no batch succeeded it returns the fixed empty answer together with
// ErrAggregationEmpty. When successful batches name no entity at all, their
// contents are joined unchanged.
func (a *Aggregator) Aggregate(results []BatchResult, f Format, expected []string) (*Result, error) {
	if !f.Valid() {
		f = FormatList
	}

	var ok []BatchResult
	for _, r := range results {
		if r.Success {
			ok = append(ok, r)
		}
	}

	if len(ok) == 0 {
		slog.Warn("aggregation_empty", slog.Int("batches", len(results)))
		return &Result{
			Content:  EmptyMessage,
			Entities: []string{},
			Format:   f,
			Stats:    Stats{TotalBatches: len(results)},
		}, ragerrors.ErrAggregationEmpty
	}

	items := make(map[string][]string)
	found := []string{}
	for _, r := range ok {
		sec := a.Parse(r.Content)
		for _, name := range sec.order {
			e := name
			if canon, known := a.cat.Canonical(name); known {
				e = canon
			}
			if _, seen := items[e]; !seen {
				found = append(found, e)
				items[e] = []string{}
			}
			items[e] = append(items[e], sec.items[name]...)
		}
	}

	total := 0
	for e := range items {
		items[e] = Dedup(items[e])
		total += len(items[e])
	}

	display := append([]string(nil), found...)
	for _, e := range expected {
		if _, seen := items[e]; !seen {
			display = append(display, e)
			items[e] = []string{}
		}
	}
	a.cat.Sort(display)
	a.cat.Sort(found)

	var content string
	entities := found
	if len(display) == 0 {
		content = joinContents(ok)
		entities = a.coveredEntities(ok)
	} else {
		content = a.render(f, display, items)
	}

	res := &Result{
		Content:    content,
		Entities:   entities,
		TotalItems: total,
		Format:     f,
		Stats: Stats{
			SuccessRate:       float64(len(ok)) / float64(len(results)),
			TotalBatches:      len(results),
			SuccessfulBatches: len(ok),
			EntitiesFound:     len(found),
			ItemsExtracted:    total,
		},
	}

	slog.Info("aggregation_complete",
		slog.Int("entities", len(found)),
		slog.Int("items", total),
		slog.Int("successful_batches", len(ok)),
		slog.Int("total_batches", len(results)))
	return res, nil
}

// Optimize shortens content to roughly maxTokens tokens. It keeps only lines
// naming an entity, in order, and cuts the first line that does not fit.
func (a *Aggregator) Optimize(content string, maxTokens int) string {
	if maxTokens <= 0 {
		return content
	}
	maxChars := int(float64(maxTokens) * charsPerToken)
	if utf8.RuneCountInString(content) <= maxChars {
		return content
	}

	slog.Debug("optimizing_answer",
		slog.Int("chars", utf8.RuneCountInString(content)),
		slog.Int("max_chars", maxChars))

	var kept []string
	used := 0
	for _, line := range strings.Split(content, "\n") {
		if len(a.cat.MentionedIn(line)) == 0 {
			continue
		}
		n := utf8.RuneCountInString(line)
		if used+n <= maxChars {
			kept = append(kept, line)
			used += n + 1
			continue
		}
		if remaining := maxChars - used; remaining > 10 {
			kept = append(kept, string([]rune(line)[:remaining])+"...")
		}
		break
	}
	return strings.Join(kept, "\n")
}

func (a *Aggregator) coveredEntities(results []BatchResult) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range results {
		for _, e := range r.Entities {
			if _, dup := seen[e]; !dup {
				seen[e] = struct{}{}
				out = append(out, e)
			}
		}
	}
	a.cat.Sort(out)
	return out
}

func joinContents(results []BatchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if c := strings.TrimSpace(r.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n")
}
