// Package cmd provides the CLI commands for reportrag.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/logging"
	"github.com/Aman-CERP/reportrag/internal/profiling"
	"github.com/Aman-CERP/reportrag/internal/ui"
	"github.com/Aman-CERP/reportrag/pkg/version"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	dir     string
	debug   bool
	noColor bool
	profile profiling.Options

	session        *profiling.Session
	loggingCleanup func()
}

// NewRootCmd creates the root command for the reportrag CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reportrag",
		Short: "Question answering over regional government work reports",
		Long: `reportrag answers questions about provincial government work reports.

Questions are classified (single region, region lists, all 31 regions,
comparisons, statistics), split into batches, answered by an
OpenAI-compatible model over retrieved report passages, and merged.

Get started:
  reportrag config init     write .reportrag.yaml
  reportrag index           build the index from ./reports
  reportrag query "广东省的主要经济目标是什么"`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("reportrag version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.dir, "dir", "C", ".", "Project directory holding .reportrag.yaml")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.reportrag/logs/")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = opts.start
	cmd.PersistentPostRunE = opts.stop

	cmd.AddCommand(newQueryCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMCPCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newReplCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints a failure with its suggestion.
func Execute() error {
	opts := &rootOptions{}
	root := newRootCmd(opts)
	err := root.Execute()
	// PersistentPostRunE is skipped when a command fails.
	_ = opts.stop(root, nil)
	if err != nil {
		_, _ = fmt.Fprintln(root.ErrOrStderr(), formatError(err, opts.debug))
	}
	return err
}

func formatError(err error, debug bool) string {
	msg := ragerrors.FormatForUser(err, debug)
	if !strings.HasPrefix(msg, "Error: ") {
		msg = "Error: " + msg
	}
	return msg
}

// logModeFor picks log outputs by command. The MCP server owns stdio.
func logModeFor(cmd *cobra.Command) logging.Mode {
	switch cmd.Name() {
	case "mcp":
		return logging.ModeStdio
	case "serve":
		return logging.ModeServer
	default:
		return logging.ModeCLI
	}
}

// start installs logging and starts profiling.
func (o *rootOptions) start(cmd *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	cfg.Mode = logModeFor(cmd)
	if o.debug {
		cfg.Level = "debug"
		cfg.StderrLevel = "debug"
	}
	cleanup, err := logging.Install(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup

	if o.debug {
		slog.Info("Debug logging enabled",
			slog.String("log_file", cfg.FilePath),
			slog.String("command", cmd.Name()),
			slog.String("version", version.Version))
	}

	if o.profile.Enabled() {
		if o.session, err = profiling.Start(o.profile); err != nil {
			return err
		}
	}
	return nil
}

// stop ends profiling and flushes the log file.
func (o *rootOptions) stop(_ *cobra.Command, _ []string) error {
	err := o.session.Stop()
	o.session = nil

	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
	if err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// colorDisabled reports whether output should be plain.
func (o *rootOptions) colorDisabled() bool {
	return o.noColor || ui.DetectNoColor()
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
