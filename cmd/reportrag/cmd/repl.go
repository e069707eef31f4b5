package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// replExit are the inputs that end an interactive session.
var replExit = map[string]bool{"quit": true, "exit": true, "q": true, "退出": true}

func newReplCmd(opts *rootOptions) *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Ask questions interactively",
		Long: `Start an interactive session. Each line is answered like 'reportrag query'.
The index is built first if it does not exist.

Prefix a line with '?' to see its query plan instead of running it.
Type quit, exit or 退出 to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runRepl(ctx, cmd, opts, flags)
		},
	}

	flags.register(cmd)

	return cmd
}

func runRepl(ctx context.Context, cmd *cobra.Command, opts *rootOptions, flags *queryFlags) error {
	qopts, err := flags.options()
	if err != nil {
		return err
	}

	a, err := openApp(ctx, opts.dir, appOptions{Offline: flags.offline})
	if err != nil {
		return err
	}
	defer a.Close()

	out := newWriter(cmd, opts)
	if !a.builder.IsBuilt(ctx) {
		out.Status("🔧", "No index found, building it first")
		if err := buildIndex(ctx, cmd, opts, a, true); err != nil {
			return err
		}
	}
	if a.llm == nil {
		out.Warning(formatError(a.llmErr, false))
		out.Status("💡", "Only '?' plans are available until an API key is configured")
	}

	w := cmd.OutOrStdout()
	out.Success(fmt.Sprintf("Ready (%d chunks). Type 'quit' to exit.", a.index.Count()))
	fmt.Fprintln(w, "  e.g. 北京市的经济发展重点是什么")
	fmt.Fprintln(w, "       对比广东和江苏的产业发展")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for {
		fmt.Fprint(w, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if replExit[strings.ToLower(line)] {
			return nil
		}

		lineFlags := *flags
		if q, ok := strings.CutPrefix(line, "?"); ok {
			lineFlags.explain = true
			line = strings.TrimSpace(q)
		}
		if err := answer(ctx, cmd, a, opts, &lineFlags, qopts, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(cmd.ErrOrStderr(), formatError(err, opts.debug))
		}
	}
}
