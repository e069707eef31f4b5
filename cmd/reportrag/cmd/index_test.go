package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusJSON(t *testing.T, dir string) map[string]any {
	t.Helper()
	out, err := runCLI(t, dir, "", "status", "--offline", "--json")
	require.NoError(t, err)
	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	return st
}

func TestIndexCmd_BuildsFromReports(t *testing.T) {
	// Given: a project with two reports
	dir := newProject(t)

	// When: indexing with static embeddings
	_, err := runCLI(t, dir, "", "index", "--offline", "--no-tui")

	// Then: status reports both documents
	require.NoError(t, err)
	st := statusJSON(t, dir)
	assert.Equal(t, true, st["built"])
	assert.EqualValues(t, 2, st["documents"])
	assert.Greater(t, st["chunks"], float64(2))
	assert.Len(t, st["entities"], 2)
	assert.Equal(t, "offline", st["embedder_status"])
}

func TestIndexCmd_KeepsExistingIndex(t *testing.T) {
	dir := newProject(t)
	_, err := runCLI(t, dir, "", "index", "--offline", "--no-tui")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "", "index", "--offline", "--no-tui")

	require.NoError(t, err)
	assert.Contains(t, out, "Index already built")
	assert.Contains(t, out, "--force")
}

func TestIndexCmd_Force(t *testing.T) {
	dir := newProject(t)
	_, err := runCLI(t, dir, "", "index", "--offline", "--no-tui")
	require.NoError(t, err)
	before := statusJSON(t, dir)

	out, err := runCLI(t, dir, "", "index", "--offline", "--no-tui", "--force")

	require.NoError(t, err)
	assert.NotContains(t, out, "Index already built")
	after := statusJSON(t, dir)
	assert.Equal(t, before["chunks"], after["chunks"])
}
