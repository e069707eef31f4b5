package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/llm"
)

// Executor runs one batch: retrieve, build the prompt, complete.
// It never retries; the completion client owns retry policy.
type Executor struct {
	retriever *Retriever
	llm       llm.CompletionService
	params    llm.Params
}

// NewExecutor creates an executor that calls svc with params.
func NewExecutor(r *Retriever, svc llm.CompletionService, params llm.Params) *Executor {
	return &Executor{retriever: r, llm: svc, params: params}
}

// Execute runs batch b at position index. Failures are reported in the
// result, never returned.
func (e *Executor) Execute(ctx context.Context, index int, b Batch, in Intent, f Format) BatchResult {
	start := time.Now()
	res := BatchResult{Index: index, Kind: string(b.Kind)}

	content, entities, err := e.run(ctx, b, in, f)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ragerrors.ErrBatchFailed, err)
		slog.Warn("batch_failed",
			slog.Int("index", index),
			slog.String("kind", string(b.Kind)),
			slog.Duration("elapsed", res.Elapsed),
			slog.String("error", err.Error()))
		return res
	}

	res.Success = true
	res.Content = content
	res.Entities = entities
	slog.Info("batch_complete",
		slog.Int("index", index),
		slog.String("kind", string(b.Kind)),
		slog.Int("entities", len(entities)),
		slog.Int("chars", len([]rune(content))),
		slog.Duration("elapsed", res.Elapsed))
	return res
}

func (e *Executor) run(ctx context.Context, b Batch, in Intent, f Format) (string, []string, error) {
	retrieved, err := e.retriever.Retrieve(ctx, b, in)
	if err != nil {
		return "", nil, err
	}

	prompt := BuildPrompt(b.Query, FormatContext(retrieved), f)
	content, err := e.llm.Complete(ctx, prompt, e.params)
	if err != nil {
		return "", nil, err
	}
	return content, retrieved.Entities, nil
}
