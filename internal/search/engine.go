package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/reportrag/internal/aggregate"
	"github.com/Aman-CERP/reportrag/internal/catalog"
	"github.com/Aman-CERP/reportrag/internal/config"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/llm"
	"github.com/Aman-CERP/reportrag/internal/telemetry"
)

// DefaultParallelism is the number of batches executed at once.
const DefaultParallelism = 2

// MaxQueryLength is the longest accepted question, in runes.
const MaxQueryLength = 2000

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine answers questions: classify, plan, execute batches concurrently,
// aggregate.
type Engine struct {
	catalog    *catalog.Catalog
	classifier *Classifier
	planner    *Planner
	retriever  *Retriever
	executor   *Executor
	aggregator *aggregate.Aggregator
	cfg        config.QueryConfig
	metrics    *telemetry.QueryMetrics // optional
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithMetrics sets an optional query metrics collector.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithKeywordFallback enables keyword search when the embedder or the vector
// index fails.
func WithKeywordFallback(k KeywordIndex) EngineOption {
	return func(e *Engine) {
		if k != nil {
			e.retriever.keywords = k
		}
	}
}

// NewEngine wires the pipeline over the given dependencies.
func NewEngine(
	vectors VectorIndex,
	embedder Embedder,
	completion llm.CompletionService,
	cat *catalog.Catalog,
	cfg *config.Config,
	opts ...EngineOption,
) (*Engine, error) {
	if vectors == nil {
		return nil, fmt.Errorf("%w: vector index is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if completion == nil {
		return nil, fmt.Errorf("%w: completion service is required", ErrNilDependency)
	}
	if cat == nil {
		return nil, fmt.Errorf("%w: catalog is required", ErrNilDependency)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrNilDependency)
	}

	r := NewRetriever(vectors, embedder, cat, cfg.Retrieval, WithRetrievalTimeout(cfg.Query.Timeout))
	e := &Engine{
		catalog:    cat,
		classifier: NewClassifier(cat, cfg.Query.IntentCacheSize),
		planner:    NewPlanner(cat, cfg.Query.BatchSize),
		retriever:  r,
		executor: NewExecutor(r, completion, llm.Params{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		}),
		aggregator: aggregate.New(cat),
		cfg:        cfg.Query,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// QueryOptions adjusts one query.
type QueryOptions struct {
	// Format overrides the classified output format when set.
	Format Format
}

// Explain returns the intent and plan for query without executing it.
func (e *Engine) Explain(query string, opts QueryOptions) (*Explanation, error) {
	in, err := e.classify(query, opts)
	if err != nil {
		return nil, err
	}
	return &Explanation{Intent: in, Plan: e.planner.Plan(in)}, nil
}

func (e *Engine) classify(query string, opts QueryOptions) (Intent, error) {
	if strings.TrimSpace(query) == "" {
		return Intent{}, ragerrors.New(ragerrors.ErrCodeQueryEmpty, "query is empty", nil).
			WithSuggestion("Ask a question about the reports")
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		return Intent{}, ragerrors.New(ragerrors.ErrCodeQueryTooLong,
			fmt.Sprintf("query is %d characters, the limit is %d", n, MaxQueryLength), nil)
	}
	if opts.Format != "" && !opts.Format.Valid() {
		return Intent{}, ragerrors.New(ragerrors.ErrCodeUnknownFormat, "unknown output format: "+string(opts.Format), nil)
	}

	in := e.classifier.Classify(query)
	if opts.Format != "" {
		in.Format = opts.Format
	}
	return in, nil
}

// Query answers query. When no batch succeeds the answer carries the fixed
// no-result message and the error wraps ErrAggregationEmpty.
func (e *Engine) Query(ctx context.Context, query string, opts QueryOptions) (*Answer, error) {
	start := time.Now()
	in, err := e.classify(query, opts)
	if err != nil {
		return nil, err
	}
	plan := e.planner.Plan(in)

	ans := &Answer{
		QueryID:   uuid.NewString(),
		Query:     in.Query,
		QueryType: in.Type,
		Format:    plan.Format,
		Strategy:  plan.Strategy,
	}
	slog.Info("query_planned",
		slog.String("query_id", ans.QueryID),
		slog.String("type", string(in.Type)),
		slog.String("retrieval", string(in.Retrieval)),
		slog.String("format", string(plan.Format)),
		slog.String("strategy", string(plan.Strategy)),
		slog.Int("batches", len(plan.Batches)))

	results, err := e.run(ctx, plan, in)
	if err != nil {
		return nil, err
	}
	ans.Batches = results

	agg, aggErr := e.aggregator.Aggregate(results, plan.Format, plan.ExpectedEntities)
	ans.Result = *agg

	if aggErr == nil && e.cfg.OptimizeThreshold > 0 && utf8.RuneCountInString(agg.Content) > e.cfg.OptimizeThreshold {
		ans.Result.Content = e.aggregator.Optimize(agg.Content, e.cfg.OptimizeMaxTokens)
		ans.Optimized = true
	}
	ans.Elapsed = time.Since(start)

	e.recordMetrics(in, ans)
	slog.Info("query_complete",
		slog.String("query_id", ans.QueryID),
		slog.Int("successful_batches", agg.Stats.SuccessfulBatches),
		slog.Int("total_batches", agg.Stats.TotalBatches),
		slog.Int("entities", agg.Stats.EntitiesFound),
		slog.Bool("optimized", ans.Optimized),
		slog.Duration("elapsed", ans.Elapsed))

	if aggErr != nil {
		return ans, aggErr
	}
	return ans, nil
}

// run executes the plan's batches with bounded concurrency. Batch failures are
// recorded in their slot; only cancellation of ctx aborts the run.
func (e *Engine) run(ctx context.Context, plan QueryPlan, in Intent) ([]BatchResult, error) {
	results := make([]BatchResult, len(plan.Batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism())
	for i, b := range plan.Batches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = BatchResult{Index: i, Kind: string(b.Kind), Err: err}
				return nil
			}
			results[i] = e.executor.Execute(gctx, i, b, in, plan.Format)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeNetworkTimeout, "query cancelled", err)
	}
	return results, nil
}

func (e *Engine) parallelism() int {
	if e.cfg.Parallelism > 0 {
		return e.cfg.Parallelism
	}
	return DefaultParallelism
}

func (e *Engine) recordMetrics(in Intent, ans *Answer) {
	if e.metrics == nil {
		return
	}
	failed := 0
	for _, b := range ans.Batches {
		if !b.Success {
			failed++
		}
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:         in.Query,
		QueryType:     telemetry.QueryType(in.Type),
		Entities:      in.Entities,
		ResultCount:   len(ans.Result.Entities),
		FailedBatches: failed,
		Latency:       ans.Elapsed,
		Timestamp:     time.Now(),
	})
}
