package preflight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Aman-CERP/reportrag/internal/embed"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/index"
)

// ProbeTimeout bounds each network check.
const ProbeTimeout = 10 * time.Second

// IndexProbe reports on the built index.
type IndexProbe interface {
	IsBuilt(ctx context.Context) bool
	Check(ctx context.Context) (*index.CheckResult, error)
}

// CompletionProbe checks the completion endpoint.
type CompletionProbe interface {
	Model() string
	TestConnection(ctx context.Context) error
}

// CheckIndex reports whether the index is built and its stores agree.
func (c *Checker) CheckIndex(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "index",
		Required: false,
	}

	if !c.index.IsBuilt(ctx) {
		result.Status = StatusWarn
		result.Message = "not built (run 'reportrag index')"
		return result
	}

	check, err := c.index.Check(ctx)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("consistency check failed: %v", err)
		return result
	}
	if !check.Consistent() {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d inconsistencies (run 'reportrag index --force')", len(check.Inconsistencies))
		for i, inc := range check.Inconsistencies {
			if i > 0 {
				result.Details += "; "
			}
			result.Details += inc.Type.String() + ": " + inc.Details
		}
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d chunks, %d vectors, %d keyword documents", check.Rows, check.Vectors, check.Keywords)
	return result
}

// CheckEmbedder checks that the embedder answers. Failure is not critical:
// retrieval falls back to keyword search.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: false,
	}

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	info := embed.GetInfo(ctx, c.embedder)
	result.Details = fmt.Sprintf("%s %s (%d dimensions)", info.Provider, info.Model, info.Dimensions)
	if !info.Available {
		result.Status = StatusWarn
		result.Message = "unreachable; queries will use keyword search"
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s ready", info.Model)
	return result
}

// CheckCompletion checks that the completion endpoint accepts requests.
func (c *Checker) CheckCompletion(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "completion",
		Required: true,
	}

	if c.completion == nil {
		result.Status = StatusFail
		result.Message = "not configured"
		if c.completionErr != nil {
			result.Message = c.completionErr.Error()
			var re *ragerrors.RAGError
			if errors.As(c.completionErr, &re) {
				result.Message = re.Message
				result.Details = re.Suggestion
			}
		}
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	result.Details = c.completion.Model()
	if err := c.completion.TestConnection(ctx); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("unreachable: %v", err)
		return result
	}
	result.Status = StatusPass
	result.Message = c.completion.Model() + " ready"
	return result
}
