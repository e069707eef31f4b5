package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Aman-CERP/reportrag/internal/embed"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/index"
	"github.com/Aman-CERP/reportrag/internal/search"
	"github.com/Aman-CERP/reportrag/pkg/version"
)

const maxBodyBytes = 1 << 20

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query   string       `json:"query"`
	Options QueryOptions `json:"options"`
}

// QueryOptions adjusts one API query.
type QueryOptions struct {
	// OutputFormat overrides the classified format: list, detailed,
	// comparison or statistics.
	OutputFormat string `json:"output_format,omitempty"`
	IncludeStats bool   `json:"include_stats,omitempty"`
}

// QueryData is the data field of a query response.
type QueryData struct {
	QueryID    string           `json:"query_id"`
	Query      string           `json:"query"`
	Answer     string           `json:"answer"`
	QueryType  search.QueryType `json:"query_type"`
	Format     search.Format    `json:"format"`
	Strategy   search.Strategy  `json:"strategy"`
	Entities   []string         `json:"entities"`
	TotalItems int              `json:"total_items"`
	Optimized  bool             `json:"optimized"`
	ElapsedMS  int64            `json:"elapsed_ms"`
	Stats      *QueryStats      `json:"stats,omitempty"`
}

// QueryStats is included when the request sets include_stats.
type QueryStats struct {
	SuccessRate       float64 `json:"success_rate"`
	TotalBatches      int     `json:"total_batches"`
	SuccessfulBatches int     `json:"successful_batches"`
	EntitiesFound     int     `json:"entities_found"`
	ItemsExtracted    int     `json:"items_extracted"`
}

// SetupRequest is the body of POST /api/setup.
type SetupRequest struct {
	ForceRebuild bool `json:"force_rebuild"`
}

// ServiceStatus describes a dependency.
type ServiceStatus struct {
	Model  string `json:"model"`
	Status string `json:"status"`
}

// StatusData is the data field of GET /api/status.
type StatusData struct {
	Index    *index.Stats             `json:"index"`
	Embedder *embed.EmbedderInfo      `json:"embedder,omitempty"`
	LLM      *ServiceStatus           `json:"llm,omitempty"`
	Watch    *index.CoordinatorStatus `json:"watch,omitempty"`
	Version  string                   `json:"version"`
	Uptime   int64                    `json:"uptime_seconds"`
}

func decode(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return nil
	}
	return ragerrors.ValidationError("invalid JSON body", err)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req QueryRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	if !s.deps.Index.IsBuilt(r.Context()) {
		writeError(w, ragerrors.New(ragerrors.ErrCodeIndexNotBuilt, "index is not built", nil).
			WithSuggestion("POST /api/setup to build it"))
		return
	}

	ans, err := s.deps.Engine.Query(r.Context(), req.Query, search.QueryOptions{
		Format: search.Format(req.Options.OutputFormat),
	})
	if ans == nil {
		writeError(w, err)
		return
	}

	data := QueryData{
		QueryID:    ans.QueryID,
		Query:      ans.Query,
		Answer:     ans.Result.Content,
		QueryType:  ans.QueryType,
		Format:     ans.Format,
		Strategy:   ans.Strategy,
		Entities:   ans.Result.Entities,
		TotalItems: ans.Result.TotalItems,
		Optimized:  ans.Optimized,
		ElapsedMS:  ans.Elapsed.Milliseconds(),
	}
	if data.Entities == nil {
		data.Entities = []string{}
	}
	if req.Options.IncludeStats {
		st := ans.Result.Stats
		data.Stats = &QueryStats{
			SuccessRate:       st.SuccessRate,
			TotalBatches:      st.TotalBatches,
			SuccessfulBatches: st.SuccessfulBatches,
			EntitiesFound:     st.EntitiesFound,
			ItemsExtracted:    st.ItemsExtracted,
		}
	}

	if err != nil {
		// No batch succeeded; the answer still carries the fixed message.
		p := ragerrors.ToPayload(err)
		writeJSON(w, statusFor(p), Response{Success: false, Data: data, Message: data.Answer, Error: p})
		return
	}
	writeOK(w, data, "query completed")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := s.deps.Index.Stats(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	data := StatusData{
		Index:   st,
		Version: version.Short(),
		Uptime:  int64(time.Since(s.started).Seconds()),
	}
	if s.deps.Embedder != nil {
		info := embed.GetInfo(ctx, s.deps.Embedder)
		data.Embedder = &info
	}
	if s.deps.LLM != nil {
		data.LLM = &ServiceStatus{Model: s.deps.LLM.Model(), Status: probe(ctx, s.deps.LLM)}
	}
	if s.deps.Watch != nil {
		ws := s.deps.Watch.Status()
		data.Watch = &ws
	}
	writeOK(w, data, "")
}

func probe(ctx context.Context, p CompletionProbe) string {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()
	if err := p.TestConnection(ctx); err != nil {
		return "unreachable: " + err.Error()
	}
	return "connected"
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req SetupRequest
	if err := decode(r, &req, true); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.deps.Index.Build(r.Context(), index.BuildOptions{Force: req.ForceRebuild})
	if err != nil {
		writeError(w, err)
		return
	}
	msg := "index built"
	if res.Skipped {
		msg = "index already built; set force_rebuild to rebuild"
	}
	writeOK(w, res, msg)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok", "version": version.Short()}, "")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, Response{
		Success: false,
		Message: "no route for " + r.Method + " " + r.URL.Path,
	})
}
