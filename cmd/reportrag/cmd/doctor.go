package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reportrag/internal/config"
	"github.com/Aman-CERP/reportrag/internal/preflight"
)

// errChecksFailed is returned when a required check fails.
var errChecksFailed = errors.New("system check failed")

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the setup and diagnose issues",
		Long: `Run diagnostics for the current project.

Checks:
  - Documents directory exists and holds reports
  - Data directory is writable, with 100MB free
  - File descriptor limit (1024 minimum)
  - Index is built and its stores agree
  - Embedding endpoint (non-critical: queries fall back to keyword search)
  - Completion endpoint and API key

Use --offline to skip the network checks.`,
		Example: `  reportrag doctor
  reportrag doctor --verbose
  reportrag doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runDoctor(ctx, cmd, opts, verbose, jsonOutput, offline)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the embedding and completion checks")

	return cmd
}

// doctorOutput is the JSON form of 'reportrag doctor'.
type doctorOutput struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(ctx context.Context, cmd *cobra.Command, opts *rootOptions, verbose, jsonOutput, offline bool) error {
	cfg, err := config.Load(opts.dir)
	if err != nil {
		return err
	}

	checkOpts := []preflight.Option{
		preflight.WithOffline(offline),
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	}

	// A pipeline that fails to open is reported as a check, so the local
	// checks still run.
	var openFailure *preflight.CheckResult
	a, err := openApp(ctx, opts.dir, appOptions{Offline: offline})
	if err != nil {
		openFailure = &preflight.CheckResult{
			Name:     "pipeline",
			Status:   preflight.StatusFail,
			Message:  err.Error(),
			Required: true,
		}
	} else {
		defer a.Close()
		cfg = a.cfg
		checkOpts = append(checkOpts,
			preflight.WithIndex(a.builder),
			preflight.WithEmbedder(a.embedder),
		)
		if a.llm != nil {
			checkOpts = append(checkOpts, preflight.WithCompletion(a.llm, nil))
		} else {
			checkOpts = append(checkOpts, preflight.WithCompletion(nil, a.llmErr))
		}
	}

	checker := preflight.New(checkOpts...)
	results := checker.RunAll(ctx, cfg)
	if openFailure != nil {
		results = append(results, *openFailure)
	}

	if jsonOutput {
		if err := writeJSON(cmd, doctorOutput{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		if err := preflight.ClearMarker(cfg.Paths.DataDir); err != nil {
			slog.Debug("Failed to clear preflight marker", slog.String("error", err.Error()))
		}
		return errChecksFailed
	}
	if err := preflight.MarkPassed(cfg.Paths.DataDir); err != nil {
		slog.Debug("Failed to mark preflight as passed", slog.String("error", err.Error()))
	}
	return nil
}
