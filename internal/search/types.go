// Package search is the query pipeline: it classifies a question, plans
// bounded batches, retrieves passages per batch under a character budget,
// builds completion prompts, executes the batches with bounded concurrency and
// hands their answers to the aggregator.
package search

import (
	"time"

	"github.com/Aman-CERP/reportrag/internal/aggregate"
	"github.com/Aman-CERP/reportrag/internal/chunk"
)

// QueryType is the classified intent of a query.
type QueryType string

const (
	QueryTypeGeneral      QueryType = "general"
	QueryTypeSingleEntity QueryType = "single_entity"
	QueryTypeMultiEntity  QueryType = "multi_entity"
	QueryTypeAllEntities  QueryType = "all_entities"
	QueryTypeComparison   QueryType = "comparison"
	QueryTypeStatistics   QueryType = "statistics"
)

// Valid reports whether t is a known query type.
func (t QueryType) Valid() bool {
	switch t {
	case QueryTypeGeneral, QueryTypeSingleEntity, QueryTypeMultiEntity,
		QueryTypeAllEntities, QueryTypeComparison, QueryTypeStatistics:
		return true
	}
	return false
}

// Format selects how the answer is rendered.
type Format = aggregate.Format

const (
	FormatList       = aggregate.FormatList
	FormatDetailed   = aggregate.FormatDetailed
	FormatComparison = aggregate.FormatComparison
	FormatStatistics = aggregate.FormatStatistics
)

// Complexity grades how much work a query implies.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Valid reports whether c is a known complexity.
func (c Complexity) Valid() bool {
	return c == ComplexityLow || c == ComplexityMedium || c == ComplexityHigh
}

// Scope is how much of the catalog a query asks about.
type Scope string

const (
	ScopeComprehensive Scope = "comprehensive"
	ScopePartial       Scope = "partial"
	ScopeSpecific      Scope = "specific"
)

// BatchKind tags what a batch covers.
type BatchKind string

const (
	BatchAllEntities BatchKind = "all_entities"
	BatchEntityGroup BatchKind = "entity_group"
	BatchEntityChunk BatchKind = "entity_chunk"
	BatchDirect      BatchKind = "direct"
)

// Valid reports whether k is a known batch kind.
func (k BatchKind) Valid() bool {
	switch k {
	case BatchAllEntities, BatchEntityGroup, BatchEntityChunk, BatchDirect:
		return true
	}
	return false
}

// Strategy is the batching strategy of a plan.
type Strategy string

const (
	StrategyEntityGroups Strategy = "entity_groups"
	StrategySingleBatch  Strategy = "single_batch"
	StrategyEntityChunks Strategy = "entity_chunks"
	StrategySingleQuery  Strategy = "single_query"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyEntityGroups, StrategySingleBatch, StrategyEntityChunks, StrategySingleQuery:
		return true
	}
	return false
}

// Intent is the classification of one query. It is never mutated after
// classification.
type Intent struct {
	Query string    `json:"query"`
	Type  QueryType `json:"type"`

	// Retrieval is the type used to pick a retrieval strategy for direct
	// batches. Later rules override earlier ones here, so a comparison or
	// statistics keyword wins over named entities.
	Retrieval QueryType `json:"retrieval"`

	// Entities are the known entities named in the query, in catalog order.
	Entities   []string   `json:"entities"`
	Topics     []string   `json:"topics"`
	Actions    []string   `json:"actions"`
	Scope      Scope      `json:"scope"`
	Format     Format     `json:"format"`
	Complexity Complexity `json:"complexity"`
	Score      int        `json:"score"`

	// Rule names the classification rule that decided Type.
	Rule string `json:"rule"`
}

func (in Intent) clone() Intent {
	out := in
	out.Entities = append([]string{}, in.Entities...)
	out.Topics = append([]string{}, in.Topics...)
	out.Actions = append([]string{}, in.Actions...)
	return out
}

// Batch is one retrieval-plus-completion unit of work.
type Batch struct {
	Kind     BatchKind `json:"kind"`
	Entities []string  `json:"entities,omitempty"`
	Query    string    `json:"query"`
	Region   string    `json:"region,omitempty"`
}

// QueryPlan is the ordered batch list for one query.
type QueryPlan struct {
	QueryType        QueryType `json:"query_type"`
	Strategy         Strategy  `json:"strategy"`
	Batches          []Batch   `json:"batches"`
	ExpectedEntities []string  `json:"expected_entities"`
	Format           Format    `json:"format"`
}

// Hit is a retrieved chunk with its similarity estimate in (0, 1].
type Hit struct {
	Chunk *chunk.DocumentChunk
	Score float64
}

// RetrievalResult is the bounded context for one batch. TotalChars is the sum
// of the chunk rune counts and Entities the distinct chunk entities.
type RetrievalResult struct {
	Hits       []Hit     `json:"-"`
	Entities   []string  `json:"entities"`
	TotalChars int       `json:"total_chars"`
	Strategy   string    `json:"strategy"`
	QueryType  QueryType `json:"query_type"`
}

// Chunks returns the retrieved chunks in order.
func (r *RetrievalResult) Chunks() []*chunk.DocumentChunk {
	out := make([]*chunk.DocumentChunk, len(r.Hits))
	for i, h := range r.Hits {
		out[i] = h.Chunk
	}
	return out
}

// Empty reports whether nothing was retrieved.
func (r *RetrievalResult) Empty() bool { return len(r.Hits) == 0 }

// BatchResult is the outcome of one executed batch.
type BatchResult = aggregate.BatchResult

// AggregatedResult is the reconciled answer.
type AggregatedResult = aggregate.Result

// Answer is the engine output for one query.
type Answer struct {
	QueryID   string           `json:"query_id"`
	Query     string           `json:"query"`
	QueryType QueryType        `json:"query_type"`
	Format    Format           `json:"format"`
	Strategy  Strategy         `json:"strategy"`
	Batches   []BatchResult    `json:"batches"`
	Result    AggregatedResult `json:"result"`
	Optimized bool             `json:"optimized"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// Explanation describes how a query would be executed.
type Explanation struct {
	Intent Intent    `json:"intent"`
	Plan   QueryPlan `json:"plan"`
}
