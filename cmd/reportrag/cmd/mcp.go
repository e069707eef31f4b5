package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reportrag/internal/async"
	"github.com/Aman-CERP/reportrag/internal/index"
	"github.com/Aman-CERP/reportrag/internal/mcp"
	"github.com/Aman-CERP/reportrag/internal/preflight"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	var (
		offline   bool
		skipCheck bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the report tools to AI clients over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout.

Tools: query_reports, explain_query, index_status. Reports are exposed as
file:// resources next to reportrag://catalog, reportrag://index/stats and
reportrag://query_metrics.

When no index exists it is built in the background; queries report build
progress until it finishes. Logs go to ~/.reportrag/logs/server.log.`,
		Example: `  # Claude Desktop / Claude Code configuration
  {"command": "reportrag", "args": ["mcp", "-C", "/path/to/project"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runMCP(ctx, opts, offline, skipCheck)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no embedding API)")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip the first-run system check")

	return cmd
}

// runMCP serves MCP on stdio. stdout carries JSON-RPC only, so nothing is
// printed; diagnostics go to the log file.
func runMCP(ctx context.Context, opts *rootOptions, offline, skipCheck bool) error {
	a, err := openApp(ctx, opts.dir, appOptions{Offline: offline})
	if err != nil {
		slog.Error("mcp_startup_failed", slog.String("error", err.Error()))
		return err
	}
	defer a.Close()

	if !skipCheck && preflight.NeedsCheck(a.cfg.Paths.DataDir) {
		if err := firstRunCheck(ctx, a); err != nil {
			return err
		}
	}
	if a.llm == nil {
		slog.Warn("completion_unavailable", slog.String("error", a.llmErr.Error()))
	}

	srv, err := mcp.NewServer(mcp.Dependencies{
		Engine:   a.engine,
		Index:    a.builder,
		Embedder: a.embedder,
		Catalog:  a.catalog,
		Config:   a.cfg,
	})
	if err != nil {
		return err
	}
	srv.SetMetrics(a.metrics)

	if !a.builder.IsBuilt(ctx) {
		slog.Info("index_missing_building_in_background", slog.String("documents", a.cfg.Paths.Documents))
		bg := async.NewBackgroundIndexer(func(ctx context.Context, progress *async.IndexProgress) error {
			a.builder.SetRenderer(progress)
			_, err := a.builder.Build(ctx, index.BuildOptions{})
			return err
		})
		srv.SetIndexProgress(bg.Progress())
		bg.Start(ctx)
		defer bg.Stop()
	}

	if n, err := srv.RegisterResources(ctx); err != nil {
		slog.Warn("resource_registration_failed", slog.String("error", err.Error()))
	} else {
		slog.Debug("resources_registered", slog.Int("count", n))
	}

	err = srv.Serve(ctx, "stdio")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// firstRunCheck runs the local system checks once per data directory.
func firstRunCheck(ctx context.Context, a *app) error {
	checker := preflight.New(
		preflight.WithOffline(true),
		preflight.WithOutput(io.Discard),
	)
	results := checker.RunAll(ctx, a.cfg)
	if checker.HasCriticalFailures(results) {
		for _, r := range results {
			if r.IsCritical() {
				slog.Error("system_check_failed",
					slog.String("check", r.Name),
					slog.String("message", r.Message))
			}
		}
		return fmt.Errorf("system check failed - run 'reportrag doctor' for diagnostics")
	}
	if err := preflight.MarkPassed(a.cfg.Paths.DataDir); err != nil {
		slog.Debug("Failed to mark preflight as passed", slog.String("error", err.Error()))
	}
	return nil
}
