package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/logging"
)

const (
	beijingReport   = "北京市政府工作报告。\n主要目标：地区生产总值增长百分之五左右。\n推进国际科技创新中心建设，加快建设现代化产业体系。"
	guangdongReport = "广东省政府工作报告。\n主要目标：地区生产总值增长百分之五左右。\n推进制造业当家，建设粤港澳大湾区国际科技创新中心。"

	smallChunksConfig = `version: 1
ingest:
  chunk_size: 40
  chunk_overlap: 5
  min_chunk_length: 20
`
)

// isolateEnv points HOME and the user config at temp dirs and clears API keys.
func isolateEnv(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{
		"SILICONFLOW_API_KEY",
		"REPORTRAG_LLM_API_KEY",
		"REPORTRAG_EMBEDDINGS_API_KEY",
		"REPORTRAG_EMBEDDINGS_PROVIDER",
		"REPORTRAG_DOCUMENTS",
		"REPORTRAG_DATA_DIR",
	} {
		t.Setenv(key, "")
	}
}

// newProject creates a project with two reports and small chunks.
func newProject(t *testing.T) string {
	t.Helper()
	isolateEnv(t)
	dir := t.TempDir()
	docs := filepath.Join(dir, "reports")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "北京.txt"), []byte(beijingReport), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "广东.txt"), []byte(guangdongReport), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".reportrag.yaml"), []byte(smallChunksConfig), 0o644))
	return dir
}

// runCLI executes the root command in dir and returns the combined output.
func runCLI(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	opts := &rootOptions{}
	cmd := newRootCmd(opts)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--dir", dir, "--no-color"}, args...))

	err := cmd.Execute()
	_ = opts.stop(cmd, nil)
	return buf.String(), err
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	// When: executing with --help
	err := cmd.Execute()

	// Then: it lists the commands
	require.NoError(t, err)
	out := buf.String()
	for _, name := range []string{"query", "index", "serve", "mcp", "status", "doctor", "repl", "config", "logs", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"dir", "debug", "no-color", "profile-cpu", "profile-mem", "profile-trace"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
	assert.Equal(t, "C", cmd.PersistentFlags().Lookup("dir").Shorthand)
}

func TestRootCmd_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(buf.String(), "reportrag version "))
}

func TestLogModeFor(t *testing.T) {
	root := NewRootCmd()

	tests := map[string]logging.Mode{
		"mcp":    logging.ModeStdio,
		"serve":  logging.ModeServer,
		"query":  logging.ModeCLI,
		"status": logging.ModeCLI,
	}
	for name, want := range tests {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, want, logModeFor(sub), name)
	}
}

func TestFormatError(t *testing.T) {
	t.Run("plain error gets prefix", func(t *testing.T) {
		assert.Equal(t, "Error: boom", formatError(errors.New("boom"), false))
	})

	t.Run("suggestion is shown", func(t *testing.T) {
		err := ragerrors.New(ragerrors.ErrCodeIndexNotBuilt, "index is not built", nil).
			WithSuggestion("run 'reportrag index' first")

		msg := formatError(err, false)

		assert.True(t, strings.HasPrefix(msg, "Error: "))
		assert.Contains(t, msg, "index is not built")
		assert.Contains(t, msg, "run 'reportrag index' first")
	})
}

func TestRootCmd_ProfilesCommand(t *testing.T) {
	// Given: a project and a CPU profile path
	dir := newProject(t)
	profile := filepath.Join(t.TempDir(), "cpu.prof")

	// When: running a command with --profile-cpu
	_, err := runCLI(t, dir, "", "--profile-cpu", profile, "config", "path")

	// Then: the profile is written
	require.NoError(t, err)
	assert.FileExists(t, profile)
}
