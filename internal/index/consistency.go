package index

import (
	"context"
	"fmt"
	"log/slog"
)

// InconsistencyType categorizes a cross-store mismatch.
type InconsistencyType int

const (
	// InconsistencyMissingVector means chunk rows outnumber searchable vectors.
	InconsistencyMissingVector InconsistencyType = iota
	// InconsistencyMissingKeyword means chunk rows outnumber keyword documents.
	InconsistencyMissingKeyword
	// InconsistencyOrphanKeyword means the keyword index holds documents with no chunk row.
	InconsistencyOrphanKeyword
)

// String returns the snake_case name used in logs.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyMissingVector:
		return "missing_vector"
	case InconsistencyMissingKeyword:
		return "missing_keyword"
	case InconsistencyOrphanKeyword:
		return "orphan_keyword"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected mismatch.
type Inconsistency struct {
	Type    InconsistencyType
	Details string
}

// CheckResult holds the store counts and the mismatches between them.
type CheckResult struct {
	Rows            int
	Vectors         int
	Keywords        int
	Inconsistencies []Inconsistency
}

// Consistent reports whether no mismatch was found.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// Check compares the chunk store with the vector and keyword indices. An
// interrupted build leaves them out of step; the fix is a forced rebuild.
func (b *Builder) Check(ctx context.Context) (*CheckResult, error) {
	rows, err := b.chunks.Count(ctx)
	if err != nil {
		return nil, err
	}
	res := &CheckResult{Rows: rows, Vectors: b.index.Count()}

	if res.Vectors < rows {
		res.Inconsistencies = append(res.Inconsistencies, Inconsistency{
			Type:    InconsistencyMissingVector,
			Details: fmt.Sprintf("%d chunks have no vector", rows-res.Vectors),
		})
	}

	if b.keywords != nil {
		res.Keywords = b.keywords.Count()
		switch {
		case res.Keywords < rows:
			res.Inconsistencies = append(res.Inconsistencies, Inconsistency{
				Type:    InconsistencyMissingKeyword,
				Details: fmt.Sprintf("%d chunks missing from the keyword index", rows-res.Keywords),
			})
		case res.Keywords > rows:
			res.Inconsistencies = append(res.Inconsistencies, Inconsistency{
				Type:    InconsistencyOrphanKeyword,
				Details: fmt.Sprintf("%d keyword documents have no chunk", res.Keywords-rows),
			})
		}
	}

	for _, issue := range res.Inconsistencies {
		slog.Warn("index_inconsistent",
			slog.String("type", issue.Type.String()),
			slog.String("details", issue.Details))
	}
	return res, nil
}
