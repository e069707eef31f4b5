package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/reportrag/internal/async"
	"github.com/Aman-CERP/reportrag/internal/catalog"
	"github.com/Aman-CERP/reportrag/internal/config"
	"github.com/Aman-CERP/reportrag/internal/embed"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/index"
	"github.com/Aman-CERP/reportrag/internal/search"
	"github.com/Aman-CERP/reportrag/internal/telemetry"
	"github.com/Aman-CERP/reportrag/pkg/version"
)

// ServerName is the implementation name announced to clients.
const ServerName = "reportrag"

// Engine runs and explains queries.
type Engine interface {
	Query(ctx context.Context, query string, opts search.QueryOptions) (*search.Answer, error)
	Explain(query string, opts search.QueryOptions) (*search.Explanation, error)
}

// Index reports on the built index.
type Index interface {
	Stats(ctx context.Context) (*index.Stats, error)
	IsBuilt(ctx context.Context) bool
}

// Dependencies are the collaborators of a Server. Engine and Index are required.
type Dependencies struct {
	Engine   Engine
	Index    Index
	Embedder embed.Embedder
	Catalog  *catalog.Catalog
	Config   *config.Config
}

// Server is the MCP server. It bridges AI clients with the report query
// pipeline.
type Server struct {
	mcp    *mcp.Server
	deps   Dependencies
	logger *slog.Logger

	// Background build progress (nil when the index was built up front)
	indexProgress *async.IndexProgress

	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{
		Name:        ToolQueryReports,
		Description: "Answer a question about the regional government work reports. Handles single regions, region lists, all 31 regions, comparisons and statistics; large questions are split into batches and merged.",
	},
	{
		Name:        ToolExplainQuery,
		Description: "Show how a question would be classified and batched without running it. Use to check entity detection and the batch plan before an expensive query.",
	},
	{
		Name:        ToolIndexStatus,
		Description: "Check whether the report index is built, how many chunks each region has and which embedder is active.",
	},
}

// NewServer creates a server and registers its tools and static resources.
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("query engine is required")
	}
	if deps.Index == nil {
		return nil, errors.New("index is required")
	}
	if deps.Config == nil {
		deps.Config = config.NewConfig()
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}

	s := &Server{
		deps:   deps,
		logger: slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerStaticResources()
	return s, nil
}

// SetIndexProgress attaches a background build. While it runs, query tools
// report progress instead of querying a half-written index.
func (s *Server) SetIndexProgress(progress *async.IndexProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexProgress = progress
}

// SetMetrics attaches query telemetry and registers the query_metrics resource.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), toolInfos...)
}

// CallTool invokes a tool by name with JSON-style arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolQueryReports:
		var in QueryReportsInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		text, _, err := s.queryReports(ctx, in)
		return text, err
	case ToolExplainQuery:
		var in ExplainQueryInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.explainQuery(in)
	case ToolIndexStatus:
		return s.indexStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, v any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) buildingSnapshot() (async.IndexProgressSnapshot, bool) {
	s.mu.RLock()
	progress := s.indexProgress
	s.mu.RUnlock()
	if progress == nil || !progress.IsIndexing() {
		return async.IndexProgressSnapshot{}, false
	}
	return progress.Snapshot(), true
}

// queryReports runs a query and returns markdown plus the structured answer.
// When no batch succeeded the fixed empty-result message is returned together
// with the error.
func (s *Server) queryReports(ctx context.Context, in QueryReportsInput) (string, *QueryReportsOutput, error) {
	if snap, ok := s.buildingSnapshot(); ok {
		return FormatIndexingProgress(snap), nil, nil
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	if !s.deps.Index.IsBuilt(ctx) {
		return "", nil, MapError(ragerrors.New(ragerrors.ErrCodeIndexNotBuilt, "index is not built", nil).
			WithSuggestion("run 'reportrag index' first"))
	}

	requestID := uuid.NewString()[:8]
	start := time.Now()
	s.logger.Info("query_reports started",
		slog.String("request_id", requestID),
		slog.String("query", in.Query))

	ans, err := s.deps.Engine.Query(ctx, in.Query, search.QueryOptions{Format: search.Format(in.OutputFormat)})
	if ans == nil {
		if err == nil {
			err = errors.New("engine returned no answer")
		}
		s.logger.Error("query_reports failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return "", nil, MapError(err)
	}

	s.logger.Info("query_reports completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("entities", len(ans.Result.Entities)),
		slog.Bool("empty", err != nil))

	out := &QueryReportsOutput{
		QueryID:    ans.QueryID,
		Answer:     ans.Result.Content,
		QueryType:  ans.QueryType,
		Format:     ans.Format,
		Strategy:   ans.Strategy,
		Entities:   ans.Result.Entities,
		TotalItems: ans.Result.TotalItems,
		ElapsedMS:  ans.Elapsed.Milliseconds(),
	}
	if out.Entities == nil {
		out.Entities = []string{}
	}
	if err != nil {
		return FormatAnswer(ans, in.IncludeStats), out, MapError(err)
	}
	return FormatAnswer(ans, in.IncludeStats), out, nil
}

func (s *Server) explainQuery(in ExplainQueryInput) (string, error) {
	exp, err := s.deps.Engine.Explain(in.Query, search.QueryOptions{Format: search.Format(in.OutputFormat)})
	if err != nil {
		return "", MapError(err)
	}
	return FormatExplanation(exp), nil
}

func (s *Server) indexStatus(ctx context.Context) (*IndexStatusOutput, error) {
	st, err := s.deps.Index.Stats(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	out := &IndexStatusOutput{
		DocumentsDir: s.deps.Config.Paths.Documents,
		Index:        st,
		Model:        s.deps.Config.LLM.Model,
	}
	if s.deps.Embedder != nil {
		out.Embedder = embed.GetInfo(ctx, s.deps.Embedder)
	} else {
		out.Embedder = embed.EmbedderInfo{Provider: "none", Model: "none"}
	}
	s.mu.RLock()
	progress := s.indexProgress
	s.mu.RUnlock()
	if progress != nil {
		snap := progress.Snapshot()
		out.Indexing = &snap
	}
	return out, nil
}

func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolQueryReports, Description: toolInfos[0].Description}, s.mcpQueryHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolExplainQuery, Description: toolInfos[1].Description}, s.mcpExplainHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolIndexStatus, Description: toolInfos[2].Description}, s.mcpIndexStatusHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", len(toolInfos)))
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

func (s *Server) mcpQueryHandler(ctx context.Context, _ *mcp.CallToolRequest, in QueryReportsInput) (
	*mcp.CallToolResult,
	*QueryReportsOutput,
	error,
) {
	text, out, err := s.queryReports(ctx, in)
	if out == nil {
		if err != nil {
			return nil, nil, err
		}
		return textResult(text, false), nil, nil
	}
	return textResult(text, err != nil), out, nil
}

func (s *Server) mcpExplainHandler(_ context.Context, _ *mcp.CallToolRequest, in ExplainQueryInput) (
	*mcp.CallToolResult,
	any,
	error,
) {
	text, err := s.explainQuery(in)
	if err != nil {
		return nil, nil, err
	}
	return textResult(text, false), nil, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	out, err := s.indexStatus(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// Serve runs the server on the named transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
