package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/reportrag/internal/catalog"
	"github.com/Aman-CERP/reportrag/internal/chunk"
	"github.com/Aman-CERP/reportrag/internal/config"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/store"
)

// VectorIndex is nearest-neighbour search over chunk embeddings. Distance is
// lower-is-better. Neighbors returns the chunks of the same source within
// window sequence positions, the chunk itself included, ordered by sequence.
type VectorIndex interface {
	Search(ctx context.Context, vec []float32, k int, f store.Filter) ([]store.ScoredChunk, error)
	Neighbors(ctx context.Context, c *chunk.DocumentChunk, window int) ([]*chunk.DocumentChunk, error)
}

// KeywordIndex is full-text search used when embeddings are unavailable.
type KeywordIndex interface {
	Search(ctx context.Context, text string, limit int, f store.Filter) ([]store.ScoredChunk, error)
}

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Oversampling factors for per-entity retrieval.
const (
	allEntitiesOversample = 4
	entityOversample      = 3
)

// Truncation constants, in runes.
const (
	densityChars     = 500
	densityCharCap   = 2.0
	densityWords     = 100
	minPartialBudget = 200
	partialReserve   = 50
	dedupPrefixRunes = 50
)

// Strategy names reported in RetrievalResult.
const (
	strategyEntityBased = "entity_based"
	strategyTargeted    = "targeted"
	strategyComparative = "comparative"
	strategyTopic       = "topic_based"
	strategyAdjacent    = "semantic_with_adjacent"

	suffixKeyword   = "_keyword"
	suffixTruncated = "_truncated"
)

// Retriever selects a strategy per batch and returns passages bounded by the
// strategy's character budget.
type Retriever struct {
	vectors  VectorIndex
	keywords KeywordIndex
	embedder Embedder
	cat      *catalog.Catalog
	cfg      config.RetrievalConfig
	timeout  time.Duration
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithKeywordIndex enables the keyword fallback.
func WithKeywordIndex(k KeywordIndex) RetrieverOption {
	return func(r *Retriever) { r.keywords = k }
}

// WithRetrievalTimeout bounds each Retrieve call.
func WithRetrievalTimeout(d time.Duration) RetrieverOption {
	return func(r *Retriever) { r.timeout = d }
}

// NewRetriever creates a retriever.
func NewRetriever(vectors VectorIndex, embedder Embedder, cat *catalog.Catalog, cfg config.RetrievalConfig, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		vectors:  vectors,
		embedder: embedder,
		cat:      cat,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// retrievalSpec is the resolved strategy for one batch.
type retrievalSpec struct {
	queryType QueryType
	strategy  string

	// per-entity when entities is non-nil, global otherwise
	entities   []string
	quota      int
	oversample int

	topK      int
	category  chunk.Category
	adjacency bool

	maxChars int
}

func (r *Retriever) specFor(b Batch, in Intent) retrievalSpec {
	switch b.Kind {
	case BatchEntityGroup, BatchEntityChunk:
		return r.specificSpec(b.Entities)
	case BatchAllEntities:
		return r.allSpec()
	}

	switch in.Retrieval {
	case QueryTypeAllEntities:
		return r.allSpec()
	case QueryTypeSingleEntity, QueryTypeMultiEntity:
		return r.specificSpec(in.Entities)
	case QueryTypeComparison:
		s := retrievalSpec{
			queryType: QueryTypeComparison,
			strategy:  strategyComparative,
			maxChars:  r.cfg.Comparison.MaxChars,
		}
		if len(in.Entities) > 0 {
			s.entities = in.Entities
			s.quota = r.cfg.Comparison.Quota
			s.oversample = entityOversample
		} else {
			s.topK = r.cfg.Comparison.MaxTotal
		}
		return s
	case QueryTypeStatistics:
		return retrievalSpec{
			queryType: QueryTypeStatistics,
			strategy:  strategyTopic,
			topK:      r.cfg.Topic.TopK,
			category:  chunk.CategoryTarget,
			maxChars:  r.cfg.Topic.MaxChars,
		}
	default:
		return retrievalSpec{
			queryType: QueryTypeGeneral,
			strategy:  strategyAdjacent,
			topK:      r.cfg.General.TopK,
			adjacency: true,
			maxChars:  r.cfg.General.MaxChars,
		}
	}
}

func (r *Retriever) allSpec() retrievalSpec {
	return retrievalSpec{
		queryType:  QueryTypeAllEntities,
		strategy:   strategyEntityBased,
		entities:   r.cat.Entities(),
		quota:      r.cfg.AllEntities.Quota,
		oversample: allEntitiesOversample,
		maxChars:   r.cfg.AllEntities.MaxChars,
	}
}

func (r *Retriever) specificSpec(entities []string) retrievalSpec {
	s := retrievalSpec{
		queryType:  QueryTypeMultiEntity,
		strategy:   strategyTargeted,
		entities:   append([]string{}, entities...),
		quota:      r.cfg.MultiEntity.Quota,
		oversample: entityOversample,
		maxChars:   r.cfg.MultiEntity.MaxChars,
	}
	if len(entities) == 1 {
		s.queryType = QueryTypeSingleEntity
		s.quota = r.cfg.SingleEntity.Quota
		s.maxChars = r.cfg.SingleEntity.MaxChars
	}
	return s
}

// Retrieve returns the context for batch b. An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, b Batch, in Intent) (*RetrievalResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	spec := r.specFor(b, in)
	q := &querier{r: r, text: b.Query}
	if err := q.prepare(ctx); err != nil {
		return nil, err
	}

	var (
		hits []Hit
		err  error
	)
	if spec.entities != nil {
		hits, err = r.perEntity(ctx, q, spec)
	} else {
		hits, err = r.global(ctx, q, spec)
	}
	if err != nil {
		return nil, err
	}

	strategy := spec.strategy
	if q.keywordMode {
		strategy += suffixKeyword
	}
	res := r.newResult(hits, strategy, spec.queryType)
	if spec.maxChars > 0 && res.TotalChars > spec.maxChars {
		res = r.truncate(res, spec.maxChars)
	}

	slog.Info("retrieval_complete",
		slog.String("batch", string(b.Kind)),
		slog.String("strategy", res.Strategy),
		slog.Int("chunks", len(res.Hits)),
		slog.Int("entities", len(res.Entities)),
		slog.Int("chars", res.TotalChars))
	return res, nil
}

func (r *Retriever) perEntity(ctx context.Context, q *querier, spec retrievalSpec) ([]Hit, error) {
	var hits []Hit
	for _, e := range spec.entities {
		if !r.cat.IsEntity(e) {
			slog.Warn("unknown_entity_skipped", slog.String("entity", e))
			continue
		}
		found, err := q.search(ctx, spec.quota*spec.oversample, store.Filter{Entity: e})
		if err != nil {
			return nil, err
		}
		if len(found) > spec.quota {
			found = found[:spec.quota]
		}
		if len(found) == 0 {
			slog.Debug("entity_retrieval_empty", slog.String("entity", e),
				slog.String("code", ragerrors.ErrCodeRetrievalEmpty))
		}
		hits = append(hits, found...)
	}
	return hits, nil
}

func (r *Retriever) global(ctx context.Context, q *querier, spec retrievalSpec) ([]Hit, error) {
	hits, err := q.search(ctx, spec.topK, store.Filter{Category: spec.category})
	if err != nil {
		return nil, err
	}
	if spec.adjacency && r.cfg.AdjacencyWindow > 0 {
		hits = r.expand(ctx, hits, r.cfg.AdjacencyWindow)
	}
	return hits, nil
}

type chunkKey struct {
	source string
	start  int
	prefix string
}

func keyOf(c *chunk.DocumentChunk) chunkKey {
	runes := []rune(c.Content)
	return chunkKey{source: c.Source, start: c.StartPos, prefix: string(runes[:min(len(runes), dedupPrefixRunes)])}
}

// expand adds the positional neighbours of every hit right after it. Neighbours
// inherit the hit's score. Lookup failures only lose context.
func (r *Retriever) expand(ctx context.Context, hits []Hit, window int) []Hit {
	seen := make(map[chunkKey]struct{}, len(hits)*3)
	out := make([]Hit, 0, len(hits)*3)
	add := func(h Hit) {
		k := keyOf(h.Chunk)
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, h)
	}

	for _, h := range hits {
		add(h)
		neighbors, err := r.vectors.Neighbors(ctx, h.Chunk, window)
		if err != nil {
			slog.Debug("adjacent_lookup_failed",
				slog.String("chunk", h.Chunk.ID),
				slog.String("error", err.Error()))
			continue
		}
		for _, n := range neighbors {
			if n.ID == h.Chunk.ID {
				continue
			}
			add(Hit{Chunk: n, Score: h.Score})
		}
	}
	return out
}

func (r *Retriever) newResult(hits []Hit, strategy string, qt QueryType) *RetrievalResult {
	if hits == nil {
		hits = []Hit{}
	}
	res := &RetrievalResult{Hits: hits, Strategy: strategy, QueryType: qt, Entities: []string{}}
	seen := make(map[string]struct{})
	for _, h := range hits {
		res.TotalChars += h.Chunk.CharCount
		if _, ok := seen[h.Chunk.Entity]; !ok {
			seen[h.Chunk.Entity] = struct{}{}
			res.Entities = append(res.Entities, h.Chunk.Entity)
		}
	}
	r.cat.Sort(res.Entities)
	return res
}

// truncate enforces maxChars. The all-entities strategy splits the budget
// evenly per entity; the others keep the densest chunks and may end with one
// cut chunk. If nothing fits, the best-scoring chunk is kept alone.
func (r *Retriever) truncate(res *RetrievalResult, maxChars int) *RetrievalResult {
	slog.Debug("retrieval_truncating",
		slog.Int("chars", res.TotalChars),
		slog.Int("max_chars", maxChars))

	var kept []Hit
	if res.QueryType == QueryTypeAllEntities && len(res.Entities) > 0 {
		kept = truncateEven(res.Hits, maxChars/len(res.Entities))
	} else {
		kept = truncateDense(res.Hits, maxChars)
	}

	if len(kept) == 0 && len(res.Hits) > 0 {
		best := res.Hits[0]
		for _, h := range res.Hits[1:] {
			if h.Score > best.Score {
				best = h
			}
		}
		slog.Warn("retrieval_truncation_underflow",
			slog.String("code", ragerrors.ErrCodeTruncationUnderflow),
			slog.Int("max_chars", maxChars),
			slog.String("kept", best.Chunk.ID))
		kept = []Hit{best}
	}

	return r.newResult(kept, res.Strategy+suffixTruncated, res.QueryType)
}

func truncateEven(hits []Hit, perEntity int) []Hit {
	used := make(map[string]int)
	var kept []Hit
	for _, h := range hits {
		e := h.Chunk.Entity
		if used[e]+h.Chunk.CharCount <= perEntity {
			kept = append(kept, h)
			used[e] += h.Chunk.CharCount
		}
	}
	return kept
}

// density favours medium-length chunks with many whitespace-separated words.
func density(c *chunk.DocumentChunk) float64 {
	return min(float64(c.CharCount)/densityChars, densityCharCap) +
		float64(len(strings.Fields(c.Content)))/densityWords
}

func truncateDense(hits []Hit, maxChars int) []Hit {
	ranked := append([]Hit(nil), hits...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return density(ranked[i].Chunk) > density(ranked[j].Chunk)
	})

	var kept []Hit
	used := 0
	for _, h := range ranked {
		if used+h.Chunk.CharCount <= maxChars {
			kept = append(kept, h)
			used += h.Chunk.CharCount
			continue
		}
		if remaining := maxChars - used; remaining > minPartialBudget {
			kept = append(kept, Hit{Chunk: partialChunk(h.Chunk, remaining-partialReserve), Score: h.Score})
		}
		break
	}
	return kept
}

func partialChunk(c *chunk.DocumentChunk, keep int) *chunk.DocumentChunk {
	runes := []rune(c.Content)
	keep = min(keep, len(runes))
	p := chunk.New(c.ID+suffixTruncated, c.Entity, string(runes[:keep])+"...", c.Category, c.Source, c.StartPos, c.Sequence)
	p.Metadata = c.Metadata
	return p
}

// querier runs searches for one batch, by vector when the query embeds and by
// keyword otherwise.
type querier struct {
	r           *Retriever
	text        string
	vec         []float32
	keywordMode bool
}

func (q *querier) prepare(ctx context.Context) error {
	vec, err := q.r.embedder.Embed(ctx, q.text)
	if err == nil {
		q.vec = vec
		return nil
	}
	if q.r.keywords == nil || ctx.Err() != nil {
		return ragerrors.New(ragerrors.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}
	slog.Warn("embedding_failed_keyword_fallback", slog.String("error", err.Error()))
	q.keywordMode = true
	return nil
}

func (q *querier) search(ctx context.Context, k int, f store.Filter) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}
	if !q.keywordMode {
		found, err := q.r.vectors.Search(ctx, q.vec, k, f)
		if err == nil {
			return toHits(found), nil
		}
		if q.r.keywords == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, ragerrors.New(ragerrors.ErrCodeSearchFailed, "vector search failed", err)
		}
		slog.Warn("vector_search_failed_keyword_fallback", slog.String("error", err.Error()))
		q.keywordMode = true
	}

	found, err := q.r.keywords.Search(ctx, q.text, k, f)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeSearchFailed, "keyword search failed", err)
	}
	return toHits(found), nil
}

func toHits(found []store.ScoredChunk) []Hit {
	out := make([]Hit, len(found))
	for i, s := range found {
		out[i] = Hit{Chunk: s.Chunk, Score: 1 / (1 + float64(s.Distance))}
	}
	return out
}
