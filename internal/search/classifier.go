package search

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/reportrag/internal/catalog"
)

// DefaultIntentCacheSize is the number of classified queries kept.
const DefaultIntentCacheSize = 256

// highComplexity and mediumComplexity are the score thresholds.
const (
	highComplexity   = 3
	mediumComplexity = 1
)

// manyEntities is the entity count above which a query is more complex.
const manyEntities = 3

// signals are the facts about a query the rules inspect.
type signals struct {
	lower    string
	entities []string
}

// rule is one row of an ordered classification table.
type rule struct {
	name  string
	match func(s signals) bool
	typ   QueryType
}

type formatRule struct {
	words  []string
	format Format
}

// Classifier derives an Intent from a query with ordered keyword rules.
// Results are memoized in an LRU cache; it is safe for concurrent use.
type Classifier struct {
	cat     *catalog.Catalog
	kw      catalog.Keywords
	rules   []rule
	formats []formatRule
	cache   *lru.Cache[string, Intent]
}

// NewClassifier creates a classifier over the catalog tables.
// A cacheSize of zero or less uses DefaultIntentCacheSize.
func NewClassifier(cat *catalog.Catalog, cacheSize int) *Classifier {
	if cacheSize <= 0 {
		cacheSize = DefaultIntentCacheSize
	}
	cache, _ := lru.New[string, Intent](cacheSize)

	kw := cat.Keywords()
	c := &Classifier{cat: cat, kw: kw, cache: cache}
	c.rules = []rule{
		{"scope", func(s signals) bool { return catalog.ContainsAny(s.lower, kw.Scope) }, QueryTypeAllEntities},
		{"single_entity", func(s signals) bool { return len(s.entities) == 1 }, QueryTypeSingleEntity},
		{"multi_entity", func(s signals) bool { return len(s.entities) > 1 }, QueryTypeMultiEntity},
		{"comparison", func(s signals) bool { return catalog.ContainsAny(s.lower, kw.Comparison) }, QueryTypeComparison},
		{"statistics", func(s signals) bool { return catalog.ContainsAny(s.lower, kw.Statistics) }, QueryTypeStatistics},
	}
	c.formats = []formatRule{
		{kw.List, FormatList},
		{kw.Detail, FormatDetailed},
		{kw.Comparison, FormatComparison},
		{kw.Statistics, FormatStatistics},
	}
	return c
}

// Classify returns the intent of query. It never fails: a query matching no
// rule is general.
func (c *Classifier) Classify(query string) Intent {
	query = strings.TrimSpace(query)
	if in, ok := c.cache.Get(query); ok {
		return in.clone()
	}

	s := signals{lower: strings.ToLower(query)}
	s.entities = c.entitiesIn(s.lower)

	in := Intent{
		Query:    query,
		Type:     QueryTypeGeneral,
		Rule:     "default",
		Entities: s.entities,
		Topics:   tagged(s.lower, c.kw.Topics),
		Actions:  tagged(s.lower, c.kw.Actions),
		Scope:    c.scope(s),
		Format:   FormatList,
	}

	for _, r := range c.rules {
		if r.match(s) {
			in.Type, in.Rule = r.typ, r.name
			break
		}
	}

	// The retrieval type walks the same table backwards: the last matching
	// rule wins.
	in.Retrieval = QueryTypeGeneral
	for i := len(c.rules) - 1; i >= 0; i-- {
		if c.rules[i].match(s) {
			in.Retrieval = c.rules[i].typ
			break
		}
	}

	for _, fr := range c.formats {
		if catalog.ContainsAny(s.lower, fr.words) {
			in.Format = fr.format
			break
		}
	}

	in.Score = c.score(s)
	switch {
	case in.Score >= highComplexity:
		in.Complexity = ComplexityHigh
	case in.Score >= mediumComplexity:
		in.Complexity = ComplexityMedium
	default:
		in.Complexity = ComplexityLow
	}

	c.cache.Add(query, in)
	return in.clone()
}

func (c *Classifier) scope(s signals) Scope {
	switch {
	case catalog.ContainsAny(s.lower, c.kw.Comprehensive):
		return ScopeComprehensive
	case catalog.ContainsAny(s.lower, c.kw.Partial):
		return ScopePartial
	default:
		return ScopeSpecific
	}
}

func (c *Classifier) score(s signals) int {
	n := 0
	if catalog.ContainsAny(s.lower, c.kw.ComplexScope) {
		n += 2
	}
	if catalog.ContainsAny(s.lower, c.kw.Analysis) {
		n++
	}
	if catalog.ContainsAny(s.lower, c.kw.Depth) {
		n++
	}
	if len(s.entities) > manyEntities {
		n++
	}
	return n
}

// entitiesIn returns the catalog entities named in lower, in catalog order.
func (c *Classifier) entitiesIn(lower string) []string {
	out := []string{}
	for _, e := range c.cat.Entities() {
		if strings.Contains(lower, strings.ToLower(e)) {
			out = append(out, e)
		}
	}
	return out
}

func tagged(lower string, table []catalog.Tagged) []string {
	out := []string{}
	for _, t := range table {
		if catalog.ContainsAny(lower, t.Words) {
			out = append(out, t.Name)
		}
	}
	return out
}
