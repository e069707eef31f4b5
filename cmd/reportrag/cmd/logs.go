package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reportrag/internal/logging"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	logFile string
}

func newLogsCmd(opts *rootOptions) *cobra.Command {
	lo := &logsOptions{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View the reportrag log",
		Long: `Show the last lines of ~/.reportrag/logs/server.log, where every command,
the HTTP server and the MCP server write their logs. Use -f to follow new
records as they are written.`,
		Example: `  reportrag logs
  reportrag logs -n 200 --level warn
  reportrag logs -f --filter query_reports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts, lo)
		},
	}

	cmd.Flags().BoolVarP(&lo.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&lo.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&lo.level, "level", "", "Minimum level to show (debug|info|warn|error)")
	cmd.Flags().StringVar(&lo.filter, "filter", "", "Show only lines matching this regular expression")
	cmd.Flags().StringVar(&lo.logFile, "file", "", "Log file to read (default: ~/.reportrag/logs/server.log)")

	return cmd
}

func runLogs(cmd *cobra.Command, opts *rootOptions, lo *logsOptions) error {
	if lo.level != "" && !logging.ValidLevel(lo.level) {
		return fmt.Errorf("invalid level %q (debug|info|warn|error)", lo.level)
	}
	var pattern *regexp.Regexp
	if lo.filter != "" {
		var err error
		if pattern, err = regexp.Compile(lo.filter); err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	path := lo.logFile
	if path == "" {
		path = logging.DefaultLogPath()
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		MinLevel: lo.level,
		Pattern:  pattern,
		NoColor:  opts.colorDisabled(),
	})
	out, status := cmd.OutOrStdout(), cmd.ErrOrStderr()

	fmt.Fprintf(status, "Log file: %s\n---\n", path)
	entries, err := viewer.TailFile(path, lo.lines)
	if err != nil {
		return err
	}
	viewer.Print(out, entries)

	if !lo.follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(status, "--- following (Ctrl+C to stop)")
	return viewer.Follow(ctx, path, func(e logging.Entry) {
		fmt.Fprintln(out, viewer.Format(e))
	})
}
