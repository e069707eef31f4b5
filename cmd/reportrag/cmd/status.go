package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reportrag/internal/api"
	"github.com/Aman-CERP/reportrag/internal/embed"
	"github.com/Aman-CERP/reportrag/internal/preflight"
	"github.com/Aman-CERP/reportrag/internal/ui"
)

// statusOutput is the JSON form of 'reportrag status'.
type statusOutput struct {
	ui.StatusInfo
	Server *api.ServerRecord `json:"server,omitempty"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		checkLLM   bool
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index statistics and service health",
		Long: `Show how many reports and chunks are indexed, the per-category
breakdown, storage sizes, the active embedder and completion model, and
whether a 'reportrag serve' process is running for this project.

The completion endpoint is only contacted with --check-llm.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, opts, jsonOutput, checkLLM, offline)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&checkLLM, "check-llm", false, "Test the completion endpoint")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no embedding API)")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, opts *rootOptions, jsonOutput, checkLLM, offline bool) error {
	// Rebuild tolerates an index built with another embedder, so status can
	// still report on it.
	a, err := openApp(ctx, opts.dir, appOptions{Offline: offline, Rebuild: true})
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.statusInfo(ctx, checkLLM)
	if err != nil {
		return err
	}

	out := statusOutput{StatusInfo: info}
	if rec, running := api.NewPIDFile(a.cfg.Paths.DataDir).Running(); running {
		out.Server = rec
	}

	if jsonOutput {
		return writeJSON(cmd, out)
	}

	r := ui.NewStatusRenderer(cmd.OutOrStdout(), opts.colorDisabled())
	if err := r.Render(info); err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if out.Server != nil {
		fmt.Fprintf(w, "  Server:   http://%s (pid %d, up %s)\n",
			out.Server.Addr, out.Server.PID, time.Since(out.Server.StartedAt).Round(time.Second))
	}
	if preflight.NeedsCheck(a.cfg.Paths.DataDir) {
		fmt.Fprintln(w, "\n  Run 'reportrag doctor' to verify the setup.")
	}
	return nil
}

// statusInfo collects index statistics and service health.
func (a *app) statusInfo(ctx context.Context, checkLLM bool) (ui.StatusInfo, error) {
	st, err := a.builder.Stats(ctx)
	if err != nil {
		return ui.StatusInfo{}, err
	}

	info := ui.StatusInfo{
		Built:        st.Built,
		Documents:    st.Documents,
		Chunks:       st.Chunks,
		Entities:     make([]ui.EntityLine, 0, len(st.Entities)),
		Categories:   make(map[string]int, len(st.Categories)),
		BuiltAt:      st.BuiltAt,
		ChunksSize:   st.ChunksSize,
		VectorsSize:  st.VectorsSize,
		KeywordsSize: st.KeywordsSize,
		LLMModel:     a.cfg.LLM.Model,
	}
	for _, ec := range st.Entities {
		info.Entities = append(info.Entities, ui.EntityLine{Entity: ec.Entity, Chunks: ec.Chunks, TotalChars: ec.TotalChars})
	}
	for c, n := range st.Categories {
		info.Categories[string(c)] = n
	}

	probeCtx, cancel := context.WithTimeout(ctx, preflight.ProbeTimeout)
	defer cancel()

	emb := embed.GetInfo(probeCtx, a.embedder)
	info.EmbedderModel = emb.Model
	switch {
	case emb.Provider == embed.ProviderStatic:
		info.EmbedderStatus = "offline"
	case emb.Available:
		info.EmbedderStatus = "ready"
	default:
		info.EmbedderStatus = "error"
	}

	switch {
	case a.llm == nil:
		info.LLMStatus = "error"
	case !checkLLM:
		info.LLMStatus = "unchecked"
	case a.llm.TestConnection(probeCtx) != nil:
		info.LLMStatus = "error"
	default:
		info.LLMStatus = "ready"
	}
	return info, nil
}
