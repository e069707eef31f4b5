package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reportrag/internal/index"
	"github.com/Aman-CERP/reportrag/internal/ui"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var (
		noTUI   bool
		force   bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the report index",
		Long: `Build the searchable index from the documents directory.

Reports (.txt, .md) are segmented into chunks and tagged with their region
and category; processed .json chunk files are loaded as they are. Chunks are
embedded and written to the chunk database, the vector graph and the
keyword index under the data directory.

An existing index is kept unless --force is given.`,
		Example: `  reportrag index
  reportrag index --force
  reportrag index --offline --no-tui`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runIndex(ctx, cmd, opts, force, offline, noTUI)
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild even if an index exists")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no embedding API)")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts *rootOptions, force, offline, noTUI bool) error {
	a, err := openApp(ctx, opts.dir, appOptions{Offline: offline, Rebuild: true})
	if err != nil {
		return err
	}
	defer a.Close()

	out := newWriter(cmd, opts)
	if !force && a.builder.IsBuilt(ctx) {
		out.Success(fmt.Sprintf("Index already built (%d chunks). Use --force to rebuild.", a.index.Count()))
		return nil
	}

	return buildIndex(ctx, cmd, opts, a, noTUI)
}

// buildIndex rebuilds the index of a with a progress display.
func buildIndex(ctx context.Context, cmd *cobra.Command, opts *rootOptions, a *app, noTUI bool) error {
	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(noTUI),
		ui.WithNoColor(opts.colorDisabled()),
		ui.WithTitle("Indexing "+a.cfg.Paths.Documents),
	))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}
	a.builder.SetRenderer(renderer)

	result, err := a.builder.Build(ctx, index.BuildOptions{Force: true})
	_ = renderer.Stop()
	if err != nil {
		return err
	}

	if result.Warnings > 0 {
		newWriter(cmd, opts).Warningf("%d warnings during the build; run with --debug for details", result.Warnings)
	}
	return nil
}
