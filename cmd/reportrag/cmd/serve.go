package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reportrag/internal/api"
	"github.com/Aman-CERP/reportrag/internal/index"
	"github.com/Aman-CERP/reportrag/internal/watcher"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr    string
		watch   bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long: `Serve the query pipeline as a JSON API.

Endpoints:
  POST /api/query    {"query": "...", "options": {"output_format": "list", "include_stats": true}}
  GET  /api/status   index statistics and service health
  POST /api/setup    {"force_rebuild": true} rebuilds the index
  GET  /api/health   liveness

With --watch the index is rebuilt when reports under the documents directory
change.`,
		Example: `  reportrag serve
  reportrag serve --addr 127.0.0.1:9000 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cmd, opts, addr, watch, offline)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.http_addr, :8000)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild the index when reports change")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no embedding API)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *rootOptions, addr string, watch, offline bool) error {
	a, err := openApp(ctx, opts.dir, appOptions{Offline: offline})
	if err != nil {
		return err
	}
	defer a.Close()

	if addr == "" {
		addr = a.cfg.Server.HTTPAddr
	}

	pid := api.NewPIDFile(a.cfg.Paths.DataDir)
	if rec, running := pid.Running(); running {
		return fmt.Errorf("server already running (pid %d, %s)", rec.PID, rec.Addr)
	}

	deps := api.Dependencies{
		Engine:   a.engine,
		Index:    a.builder,
		Embedder: a.embedder,
	}
	if a.llm != nil {
		deps.LLM = a.llm
	} else {
		slog.Warn("completion_unavailable", slog.String("error", a.llmErr.Error()))
	}

	if watch {
		coord, err := startWatch(ctx, a)
		if err != nil {
			return err
		}
		deps.Watch = coord
	}

	srv, err := api.NewServer(addr, deps)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	if err := pid.Write(ln.Addr().String()); err != nil {
		slog.Warn("pid_file_write_failed", slog.String("error", err.Error()))
	}
	defer func() { _ = pid.Remove() }()

	out := newWriter(cmd, opts)
	out.Success(fmt.Sprintf("Serving %d chunks on http://%s", a.index.Count(), ln.Addr()))
	if !a.builder.IsBuilt(ctx) {
		out.Warning("Index is not built. POST /api/setup or run 'reportrag index'.")
	}

	return srv.Serve(ctx, ln)
}

// startWatch rebuilds the index on report changes until ctx is done.
func startWatch(ctx context.Context, a *app) (*index.Coordinator, error) {
	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow: a.cfg.Server.WatchDebounce,
		IgnoreDirs:     []string{a.cfg.Paths.DataDir},
		Filter: func(rel string) bool {
			return index.IsSupported(filepath.Base(rel))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	coord := index.NewCoordinator(a.builder, index.OnRebuilt(func(r *index.BuildResult) {
		slog.Info("index_rebuilt_on_change",
			slog.Int("documents", r.Documents),
			slog.Int("chunks", r.Chunks))
	}))

	go func() {
		if err := w.Start(ctx, a.cfg.Paths.Documents); err != nil && ctx.Err() == nil {
			slog.Error("watcher_stopped", slog.String("error", err.Error()))
		}
	}()
	go func() {
		for err := range w.Errors() {
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}()
	go coord.Run(ctx, w.Events())

	return coord, nil
}
