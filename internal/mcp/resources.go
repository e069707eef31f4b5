package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/reportrag/internal/index"
)

// MaxResourceSize is the maximum document size served as a resource (1MB).
const MaxResourceSize = 1024 * 1024

// Resource URIs.
const (
	URICatalog      = "reportrag://catalog"
	URIIndexStats   = "reportrag://index/stats"
	URIQueryMetrics = "reportrag://query_metrics"
)

// RegisterResources registers every supported report under the documents
// directory as a file:// resource. Call it after the server is created and
// before serving.
func (s *Server) RegisterResources(ctx context.Context) (int, error) {
	root := s.deps.Config.Paths.Documents
	if root == "" {
		return 0, fmt.Errorf("documents directory is not configured")
	}

	var rels []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !index.IsSupported(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}

	for _, rel := range rels {
		s.registerFileResource(rel)
	}
	s.logger.Info("registered resources", "count", len(rels))
	return len(rels), nil
}

func (s *Server) registerFileResource(rel string) {
	desc := rel
	if info, err := os.Stat(filepath.Join(s.deps.Config.Paths.Documents, filepath.FromSlash(rel))); err == nil {
		desc = fmt.Sprintf("%s (%s)", rel, humanSize(info.Size()))
	}
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        filepath.Base(rel),
			URI:         "file://" + rel,
			Description: desc,
			MIMEType:    MimeTypeForPath(rel),
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.handleReadResource(ctx, rel)
		},
	)
}

// handleReadResource reads a document relative to the documents directory.
func (s *Server) handleReadResource(_ context.Context, rel string) (*mcp.ReadResourceResult, error) {
	if !isValidPath(rel) {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid path: %s", rel))
	}
	full := filepath.Join(s.deps.Config.Paths.Documents, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewResourceNotFoundError("file://" + rel)
		}
		return nil, MapError(err)
	}
	if info.Size() > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeResourceTooLarge,
			Message: fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), MaxResourceSize),
		}
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return nil, MapError(err)
	}
	return textResource("file://"+rel, MimeTypeForPath(rel), string(content)), nil
}

// isValidPath rejects empty, absolute and parent-relative paths.
func isValidPath(path string) bool {
	if path == "" || filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return false
	}
	if len(path) >= 2 && path[1] == ':' {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

func humanSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)
	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func textResource(uri, mime, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mime, Text: text}},
	}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return textResource(uri, "application/json", string(content)), nil
}

// CatalogOutput is the JSON structure of the catalog resource.
type CatalogOutput struct {
	Entities []string          `json:"entities"`
	Groups   []CatalogGroup    `json:"groups"`
	Aliases  map[string]string `json:"aliases"`
}

// CatalogGroup is one regional grouping.
type CatalogGroup struct {
	Name     string   `json:"name"`
	Entities []string `json:"entities"`
}

func (s *Server) registerStaticResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "catalog",
		URI:         URICatalog,
		Description: "Known regions, their regional groups and accepted aliases",
		MIMEType:    "application/json",
	}, func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return jsonResource(URICatalog, s.catalogOutput())
	})

	s.mcp.AddResource(&mcp.Resource{
		Name:        "index_stats",
		URI:         URIIndexStats,
		Description: "Chunk counts per region and category",
		MIMEType:    "application/json",
	}, func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		st, err := s.deps.Index.Stats(ctx)
		if err != nil {
			return nil, MapError(err)
		}
		return jsonResource(URIIndexStats, st)
	})
}

func (s *Server) catalogOutput() CatalogOutput {
	c := s.deps.Catalog
	out := CatalogOutput{
		Entities: c.Entities(),
		Aliases:  c.Aliases(),
	}
	for _, g := range c.Groups() {
		out.Groups = append(out.Groups, CatalogGroup{Name: g.Name, Entities: g.Entities})
	}
	return out
}

// QueryMetricsOutput is the JSON structure of the query_metrics resource.
type QueryMetricsOutput struct {
	Summary             QueryMetricsSummary `json:"summary"`
	QueryTypeCounts     map[string]int64    `json:"query_type_counts"`
	TopEntities         []EntityCount       `json:"top_entities"`
	ZeroResultQueries   []string            `json:"zero_result_queries"`
	LatencyDistribution map[string]int64    `json:"latency_distribution"`
}

// QueryMetricsSummary provides overview statistics.
type QueryMetricsSummary struct {
	TotalQueries    int64   `json:"total_queries"`
	TimePeriod      string  `json:"time_period"`
	ZeroResultPct   float64 `json:"zero_result_pct"`
	FailedBatches   int64   `json:"failed_batches"`
	ExactRepeatRate float64 `json:"exact_repeat_rate"`
}

// EntityCount is a region and how often queries named it.
type EntityCount struct {
	Entity string `json:"entity"`
	Count  int64  `json:"count"`
}

func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "query_metrics",
		URI:         URIQueryMetrics,
		Description: "Query pattern telemetry: query types, most asked regions, latency",
		MIMEType:    "application/json",
	}, func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		out, err := s.queryMetricsOutput()
		if err != nil {
			return nil, err
		}
		return jsonResource(URIQueryMetrics, out)
	})
}

func (s *Server) queryMetricsOutput() (*QueryMetricsOutput, error) {
	s.mu.RLock()
	metrics := s.metrics
	s.mu.RUnlock()
	if metrics == nil {
		return nil, NewInvalidParamsError("query metrics not available")
	}

	snap := metrics.Snapshot()
	out := &QueryMetricsOutput{
		Summary: QueryMetricsSummary{
			TotalQueries:    snap.TotalQueries,
			TimePeriod:      "session",
			ZeroResultPct:   snap.ZeroResultPercentage(),
			FailedBatches:   snap.FailedBatches,
			ExactRepeatRate: snap.ExactRepeatRate,
		},
		QueryTypeCounts:     make(map[string]int64, len(snap.QueryTypeCounts)),
		TopEntities:         make([]EntityCount, 0, len(snap.TopEntities)),
		ZeroResultQueries:   snap.ZeroResultQueries,
		LatencyDistribution: make(map[string]int64, len(snap.LatencyDistribution)),
	}
	for qt, n := range snap.QueryTypeCounts {
		out.QueryTypeCounts[string(qt)] = n
	}
	for _, ec := range snap.TopEntities {
		out.TopEntities = append(out.TopEntities, EntityCount{Entity: ec.Entity, Count: ec.Count})
	}
	for b, n := range snap.LatencyDistribution {
		out.LatencyDistribution[string(b)] = n
	}
	return out, nil
}
