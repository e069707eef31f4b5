package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reportrag/internal/aggregate"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/output"
	"github.com/Aman-CERP/reportrag/internal/search"
)

// queryFlags are the per-query flags shared by query and repl.
type queryFlags struct {
	format    string
	explain   bool
	withStats bool
	jsonOut   bool
	offline   bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Override the answer format: list, detailed, comparison, statistics")
	cmd.Flags().BoolVar(&f.withStats, "stats", false, "Print batch statistics after the answer")
	cmd.Flags().BoolVar(&f.offline, "offline", false, "Use static embeddings (keyword-quality retrieval, no embedding API)")
}

func (f *queryFlags) options() (search.QueryOptions, error) {
	if f.format == "" {
		return search.QueryOptions{}, nil
	}
	format, err := aggregate.ParseFormat(f.format)
	if err != nil {
		return search.QueryOptions{}, err
	}
	return search.QueryOptions{Format: format}, nil
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:     "query <question>",
		Aliases: []string{"ask"},
		Short:   "Answer a question about the reports",
		Long: `Answer a question about the government work reports.

The question is classified, split into batches of regions, answered by the
completion model over retrieved report passages, and merged into one answer.
Use --explain to see the classification and batch plan without calling the
model.`,
		Example: `  reportrag query "广东省的主要经济目标是什么"
  reportrag query "比较北京和上海的科技创新政策" --stats
  reportrag query "哪些省份提到了低空经济" --format list
  reportrag query "全国各省份的GDP增长目标" --explain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runQuery(ctx, cmd, opts, flags, strings.Join(args, " "))
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.explain, "explain", false, "Show the query plan without executing it")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "Output the full answer as JSON")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, opts *rootOptions, flags *queryFlags, question string) error {
	qopts, err := flags.options()
	if err != nil {
		return err
	}

	a, err := openApp(ctx, opts.dir, appOptions{Offline: flags.offline})
	if err != nil {
		return err
	}
	defer a.Close()

	return answer(ctx, cmd, a, opts, flags, qopts, question)
}

// answer runs or explains one question against an opened app.
func answer(ctx context.Context, cmd *cobra.Command, a *app, opts *rootOptions, flags *queryFlags, qopts search.QueryOptions, question string) error {
	out := newWriter(cmd, opts)

	if flags.explain {
		exp, err := a.engine.Explain(question, qopts)
		if err != nil {
			return err
		}
		if flags.jsonOut {
			return writeJSON(cmd, exp)
		}
		out.Plan(exp)
		return nil
	}

	if !a.builder.IsBuilt(ctx) {
		return ragerrors.New(ragerrors.ErrCodeIndexNotBuilt, "index is not built", nil).
			WithSuggestion("run 'reportrag index' first")
	}
	if a.llm == nil {
		return a.llmErr
	}

	ans, err := a.engine.Query(ctx, question, qopts)
	if ans == nil {
		return err
	}
	if flags.jsonOut {
		if jerr := writeJSON(cmd, ans); jerr != nil {
			return jerr
		}
		return err
	}
	out.Answer(ans, flags.withStats)
	return err
}

func newWriter(cmd *cobra.Command, opts *rootOptions) *output.Writer {
	if opts.colorDisabled() {
		return output.NewWithColor(cmd.OutOrStdout(), false)
	}
	return output.New(cmd.OutOrStdout())
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
