package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/Aman-CERP/reportrag/internal/catalog"
	"github.com/Aman-CERP/reportrag/internal/config"
	"github.com/Aman-CERP/reportrag/internal/embed"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/index"
	"github.com/Aman-CERP/reportrag/internal/llm"
	"github.com/Aman-CERP/reportrag/internal/search"
	"github.com/Aman-CERP/reportrag/internal/store"
	"github.com/Aman-CERP/reportrag/internal/telemetry"
)

// appOptions controls how much of the pipeline openApp wires.
type appOptions struct {
	// Offline forces the static embedder.
	Offline bool
	// RequireLLM fails when no completion client can be created. Otherwise
	// queries fail at execution time and Explain still works.
	RequireLLM bool
	// Rebuild accepts an index built with other embedding dimensions, since
	// the caller is about to replace it.
	Rebuild bool
}

// app holds the wired pipeline for one project directory.
type app struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	layout   store.Layout
	chunks   *store.SQLiteStore
	vectors  *store.HNSWStore
	index    *store.ChunkIndex
	keywords *store.KeywordIndex
	embedder embed.Embedder
	builder  *index.Builder
	engine   *search.Engine
	metrics  *telemetry.QueryMetrics

	// llm is nil when no completion client could be created; llmErr says why.
	llm    *llm.OpenAIClient
	llmErr error
}

// openApp loads configuration from dir and opens the stores, embedder,
// completion client and query engine.
func openApp(ctx context.Context, dir string, opts appOptions) (*app, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, layout: store.LayoutIn(cfg.Paths.DataDir)}
	opened := false
	defer func() {
		if !opened {
			a.Close()
		}
	}()

	if a.catalog, err = catalogFor(cfg); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(a.layout.Dir, 0o755); err != nil {
		return nil, ragerrors.StorageError("failed to create data directory", err)
	}
	if a.chunks, err = store.NewSQLiteStore(a.layout.Chunks); err != nil {
		return nil, ragerrors.StorageError("failed to open chunk store", err)
	}

	if opts.Offline {
		a.embedder = embed.NewCachedEmbedder(embed.NewStaticEmbedder(), cfg.Embeddings.CacheSize)
	} else if a.embedder, err = embed.NewEmbedder(ctx, cfg.Embeddings, cfg.LLM.APIKey); err != nil {
		return nil, err
	}

	dims := a.embedder.Dimensions()
	mismatch, err := a.checkDimensions(ctx, dims)
	if err != nil && !opts.Rebuild {
		return nil, err
	}
	if a.vectors, err = store.NewHNSWStore(store.DefaultVectorStoreConfig(dims)); err != nil {
		return nil, ragerrors.StorageError("failed to create vector store", err)
	}
	a.index = store.NewChunkIndex(a.chunks, a.vectors)
	if !mismatch {
		if err = a.index.Load(ctx, a.layout.Vectors); err != nil {
			return nil, ragerrors.New(ragerrors.ErrCodeCorruptIndex, "failed to load index", err).
				WithSuggestion("run 'reportrag index --force' to rebuild")
		}
	}
	if a.keywords, err = store.NewKeywordIndex(a.layout.Keywords, a.chunks); err != nil {
		return nil, ragerrors.StorageError("failed to open keyword index", err)
	}

	if a.builder, err = index.NewBuilder(index.Dependencies{
		Config:   cfg,
		Catalog:  a.catalog,
		Chunks:   a.chunks,
		Index:    a.index,
		Keywords: a.keywords,
		Embedder: a.embedder,
	}); err != nil {
		return nil, err
	}

	var metricsStore telemetry.QueryMetricsStore
	if ms, msErr := telemetry.NewSQLiteMetricsStore(a.chunks.DB()); msErr == nil {
		metricsStore = ms
	} else {
		slog.Warn("query_metrics_store_unavailable", slog.String("error", msErr.Error()))
	}
	a.metrics = telemetry.NewQueryMetrics(metricsStore)

	var completion llm.CompletionService
	a.llm, a.llmErr = llm.NewOpenAIClient(cfg.LLM, cfg.Query.MaxRetries)
	switch {
	case a.llmErr == nil:
		completion = a.llm
	case opts.RequireLLM:
		return nil, a.llmErr
	default:
		a.llm = nil
		completion = unavailableCompletion{err: a.llmErr}
	}

	if a.engine, err = search.NewEngine(a.index, a.embedder, completion, a.catalog, cfg,
		search.WithMetrics(a.metrics),
		search.WithKeywordFallback(a.keywords),
	); err != nil {
		return nil, err
	}

	slog.Debug("app_opened",
		slog.String("documents", cfg.Paths.Documents),
		slog.String("data_dir", cfg.Paths.DataDir),
		slog.String("embedder", a.embedder.ModelName()),
		slog.Int("chunks", a.index.Count()))
	opened = true
	return a, nil
}

// checkDimensions compares the embedder with the dimensions the index was
// built with. It reports a mismatch together with an error describing it.
func (a *app) checkDimensions(ctx context.Context, dims int) (bool, error) {
	stored, err := a.chunks.GetState(ctx, store.StateKeyIndexDimension)
	if err != nil || stored == "" {
		return false, nil
	}
	built, err := strconv.Atoi(stored)
	if err != nil || built == dims {
		return false, nil
	}
	model, _ := a.chunks.GetState(ctx, store.StateKeyIndexModel)
	return true, ragerrors.New(ragerrors.ErrCodeDimensionMismatch,
		fmt.Sprintf("index was built with %s (%d dimensions) but the embedder %s produces %d",
			model, built, a.embedder.ModelName(), dims), nil).
		WithSuggestion("run 'reportrag index --force' to rebuild with the current embedder")
}

func catalogFor(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.IsZero() {
		return catalog.Default(), nil
	}
	return catalog.FromConfig(cfg.Catalog)
}

// Close releases the stores. Metrics are flushed before the database closes.
func (a *app) Close() {
	if a == nil {
		return
	}
	var errs []error
	if a.metrics != nil {
		errs = append(errs, a.metrics.Close())
	}
	if a.keywords != nil {
		errs = append(errs, a.keywords.Close())
	}
	if a.vectors != nil {
		errs = append(errs, a.vectors.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.chunks != nil {
		errs = append(errs, a.chunks.Close())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("app_close_failed", slog.String("error", err.Error()))
	}
}

// unavailableCompletion stands in for the completion client when none could
// be created, so that planning and explaining still work.
type unavailableCompletion struct {
	err error
}

func (u unavailableCompletion) Complete(context.Context, string, llm.Params) (string, error) {
	return "", u.err
}
