// Package api serves the query pipeline over HTTP with JSON envelopes.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Aman-CERP/reportrag/internal/embed"
	"github.com/Aman-CERP/reportrag/internal/index"
	"github.com/Aman-CERP/reportrag/internal/search"
)

// Querier answers questions.
type Querier interface {
	Query(ctx context.Context, query string, opts search.QueryOptions) (*search.Answer, error)
}

// Indexer builds and describes the index.
type Indexer interface {
	Build(ctx context.Context, opts index.BuildOptions) (*index.BuildResult, error)
	Stats(ctx context.Context) (*index.Stats, error)
	IsBuilt(ctx context.Context) bool
}

// CompletionProbe checks the completion endpoint.
type CompletionProbe interface {
	Model() string
	TestConnection(ctx context.Context) error
}

// Dependencies are the services behind the endpoints.
type Dependencies struct {
	Engine   Querier
	Index    Indexer
	Embedder embed.Embedder
	LLM      CompletionProbe
	// Watch is set when the server rebuilds on document changes.
	Watch *index.Coordinator
}

// ProbeTimeout bounds the completion connectivity check in /api/status.
const ProbeTimeout = 5 * time.Second

// Server is the HTTP front end.
type Server struct {
	deps    Dependencies
	addr    string
	started time.Time
	handler http.Handler
}

// NewServer creates a server listening on addr once started.
func NewServer(addr string, deps Dependencies) (*Server, error) {
	if deps.Engine == nil || deps.Index == nil {
		return nil, fmt.Errorf("engine and index are required")
	}
	s := &Server{deps: deps, addr: addr, started: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/setup", s.handleSetup)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("/", s.handleNotFound)

	s.handler = withRequestID(withLogging(withCORS(mux)))
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Queries fan out to the completion API and can take minutes.
		WriteTimeout: 10 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("api_listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		slog.Info("api_stopped")
		return nil
	}
}
