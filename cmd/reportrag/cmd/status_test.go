package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCmd_NotBuilt(t *testing.T) {
	// Given: a project that was never indexed
	dir := newProject(t)

	// When: checking status
	out, err := runCLI(t, dir, "", "status", "--offline")

	// Then: it suggests building the index and the setup check
	require.NoError(t, err)
	assert.Contains(t, out, "not built")
	assert.Contains(t, out, "reportrag doctor")
}

func TestStatusCmd_JSONWithoutKey(t *testing.T) {
	dir := newProject(t)

	st := statusJSON(t, dir)

	assert.Equal(t, false, st["built"])
	assert.Equal(t, "error", st["llm_status"])
	assert.NotContains(t, st, "server")
}

func TestStatusCmd_UncheckedLLM(t *testing.T) {
	dir := newProject(t)
	t.Setenv("REPORTRAG_LLM_API_KEY", "sk-test")

	st := statusJSON(t, dir)

	assert.Equal(t, "unchecked", st["llm_status"])
}
