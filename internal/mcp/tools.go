package mcp

import (
	"github.com/Aman-CERP/reportrag/internal/async"
	"github.com/Aman-CERP/reportrag/internal/embed"
	"github.com/Aman-CERP/reportrag/internal/index"
	"github.com/Aman-CERP/reportrag/internal/search"
)

// Tool names.
const (
	ToolQueryReports = "query_reports"
	ToolExplainQuery = "explain_query"
	ToolIndexStatus  = "index_status"
)

// QueryReportsInput defines the input schema for the query_reports tool.
type QueryReportsInput struct {
	Query        string `json:"query" jsonschema:"question about the regional work reports, in Chinese"`
	OutputFormat string `json:"output_format,omitempty" jsonschema:"override the answer format: list, detailed, comparison or statistics"`
	IncludeStats bool   `json:"include_stats,omitempty" jsonschema:"append batch statistics to the answer"`
}

// QueryReportsOutput defines the structured output of the query_reports tool.
type QueryReportsOutput struct {
	QueryID    string           `json:"query_id"`
	Answer     string           `json:"answer"`
	QueryType  search.QueryType `json:"query_type"`
	Format     search.Format    `json:"format"`
	Strategy   search.Strategy  `json:"strategy"`
	Entities   []string         `json:"entities"`
	TotalItems int              `json:"total_items"`
	ElapsedMS  int64            `json:"elapsed_ms"`
}

// ExplainQueryInput defines the input schema for the explain_query tool.
type ExplainQueryInput struct {
	Query        string `json:"query" jsonschema:"question to classify and plan without running it"`
	OutputFormat string `json:"output_format,omitempty" jsonschema:"override the answer format"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	DocumentsDir string                       `json:"documents_dir"`
	Index        *index.Stats                 `json:"index"`
	Embedder     embed.EmbedderInfo           `json:"embedder"`
	Model        string                       `json:"completion_model"`
	Indexing     *async.IndexProgressSnapshot `json:"indexing,omitempty"`
}
