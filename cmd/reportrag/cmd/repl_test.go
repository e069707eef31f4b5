package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reportrag/internal/search"
)

func TestReplCmd_BuildsIndexAndQuits(t *testing.T) {
	// Given: a project without an index
	dir := newProject(t)

	// When: starting the repl and quitting immediately
	out, err := runCLI(t, dir, "退出\n", "repl", "--offline")

	// Then: the index is built first
	require.NoError(t, err)
	assert.Contains(t, out, "Ready")
	assert.Equal(t, true, statusJSON(t, dir)["built"])
}

func TestReplCmd_ExplainAndErrors(t *testing.T) {
	// Given: an indexed project without an API key
	dir := newProject(t)
	_, err := runCLI(t, dir, "", "index", "--offline", "--no-tui")
	require.NoError(t, err)

	// When: asking for a plan, then a query, then quitting
	out, err := runCLI(t, dir, "?四川省今年的重点任务\n\n北京的目标\nquit\n", "repl", "--offline")

	// Then: the plan is shown and the failed query does not end the session
	require.NoError(t, err)
	assert.Contains(t, out, "Query plan")
	assert.Contains(t, out, string(search.QueryTypeSingleEntity))
	assert.Contains(t, out, "API key")
}

func TestReplCmd_EndOfInput(t *testing.T) {
	dir := newProject(t)

	_, err := runCLI(t, dir, "", "repl", "--offline")

	assert.NoError(t, err)
}
