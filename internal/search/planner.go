package search

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/reportrag/internal/catalog"
)

// DefaultBatchSize is the number of entities per entity_chunk batch.
const DefaultBatchSize = 8

// maxDirectEntities is the largest entity count answered by one direct batch.
const maxDirectEntities = 5

const (
	groupQueryTemplate = "请列出%s各省份的主要工作目标：%s"
	chunkQueryTemplate = "请列出以下省份的主要工作目标：%s"
)

// Planner turns an intent into batches. The plan depends only on the intent,
// the catalog and the batch size.
type Planner struct {
	cat       *catalog.Catalog
	batchSize int
}

// NewPlanner creates a planner. A batchSize below 1 uses DefaultBatchSize.
func NewPlanner(cat *catalog.Catalog, batchSize int) *Planner {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Planner{cat: cat, batchSize: batchSize}
}

// Plan builds the query plan for in.
func (p *Planner) Plan(in Intent) QueryPlan {
	plan := QueryPlan{
		QueryType:        in.Type,
		Format:           in.Format,
		ExpectedEntities: append([]string{}, in.Entities...),
	}

	switch {
	case in.Type == QueryTypeAllEntities && in.Complexity == ComplexityHigh:
		plan.Strategy = StrategyEntityGroups
		plan.Batches = p.groupBatches()
		plan.ExpectedEntities = p.cat.Entities()

	case in.Type == QueryTypeAllEntities:
		plan.Strategy = StrategySingleBatch
		plan.Batches = []Batch{{Kind: BatchAllEntities, Entities: p.cat.Entities(), Query: in.Query}}
		plan.ExpectedEntities = p.cat.Entities()

	case len(in.Entities) > maxDirectEntities:
		plan.Strategy = StrategyEntityChunks
		plan.Batches = p.chunkBatches(in.Entities)

	default:
		plan.Strategy = StrategySingleQuery
		plan.Batches = []Batch{{Kind: BatchDirect, Entities: append([]string{}, in.Entities...), Query: in.Query}}
	}
	return plan
}

func (p *Planner) groupBatches() []Batch {
	groups := p.cat.Groups()
	out := make([]Batch, 0, len(groups))
	for _, g := range groups {
		out = append(out, Batch{
			Kind:     BatchEntityGroup,
			Entities: g.Entities,
			Query:    fmt.Sprintf(groupQueryTemplate, g.Name, strings.Join(g.Entities, ", ")),
			Region:   g.Name,
		})
	}
	return out
}

func (p *Planner) chunkBatches(entities []string) []Batch {
	out := make([]Batch, 0, (len(entities)+p.batchSize-1)/p.batchSize)
	for start := 0; start < len(entities); start += p.batchSize {
		end := min(start+p.batchSize, len(entities))
		part := append([]string(nil), entities[start:end]...)
		out = append(out, Batch{
			Kind:     BatchEntityChunk,
			Entities: part,
			Query:    fmt.Sprintf(chunkQueryTemplate, strings.Join(part, ", ")),
		})
	}
	return out
}
