// Package aggregate reconciles the free-text answers of several batches into one
// answer: it recovers per-entity items from each batch, normalizes entity names,
// collapses near-duplicate items and renders the result in the requested format.
package aggregate

import (
	"strings"
	"time"

	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
)

// Format selects how an answer is rendered.
type Format string

const (
	FormatList       Format = "list"
	FormatDetailed   Format = "detailed"
	FormatComparison Format = "comparison"
	FormatStatistics Format = "statistics"
)

// Formats lists the valid formats in display order.
var Formats = []Format{FormatList, FormatDetailed, FormatComparison, FormatStatistics}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	switch f {
	case FormatList, FormatDetailed, FormatComparison, FormatStatistics:
		return true
	}
	return false
}

// ParseFormat parses a format name. "province_list" is accepted for list.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "province_list" {
		return FormatList, nil
	}
	f := Format(s)
	if !f.Valid() {
		return "", ragerrors.New(ragerrors.ErrCodeUnknownFormat, "unknown output format: "+s, nil).
			WithSuggestion("Use one of: list, detailed, comparison, statistics")
	}
	return f, nil
}

// BatchResult is the immutable outcome of one batch.
type BatchResult struct {
	Index    int           `json:"index"`
	Kind     string        `json:"kind"`
	Success  bool          `json:"success"`
	Content  string        `json:"content,omitempty"`
	Entities []string      `json:"entities,omitempty"`
	Err      error         `json:"-"`
	Elapsed  time.Duration `json:"elapsed"`
}

// ErrorMessage returns the batch error text, or "" on success.
func (b BatchResult) ErrorMessage() string {
	if b.Err == nil {
		return ""
	}
	return b.Err.Error()
}

// Stats summarizes an aggregation.
type Stats struct {
	SuccessRate       float64 `json:"success_rate"`
	TotalBatches      int     `json:"total_batches"`
	SuccessfulBatches int     `json:"successful_batches"`
	EntitiesFound     int     `json:"entities_found"`
	ItemsExtracted    int     `json:"items_extracted"`
}

// Result is the final rendered answer.
type Result struct {
	Content    string   `json:"content"`
	Entities   []string `json:"entities"`
	TotalItems int      `json:"total_items"`
	Format     Format   `json:"format"`
	Stats      Stats    `json:"stats"`
}

// EmptyMessage is the content of an aggregation with no successful batch.
const EmptyMessage = "抱歉，没有获取到有效的查询结果。"

// Placeholder marks an entity without recovered items.
const Placeholder = "信息不足"
