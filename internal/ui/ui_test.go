package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStage_Names(t *testing.T) {
	assert.Equal(t, "Segmenting", StageSegmenting.String())
	assert.Equal(t, "EMBED", StageEmbedding.Icon())
	assert.Equal(t, "Unknown", Stage(99).String())
	assert.Equal(t, "???", Stage(99).Icon())
}

func TestNewConfig_Options(t *testing.T) {
	buf := &bytes.Buffer{}

	cfg := NewConfig(buf, WithForcePlain(true), WithNoColor(true), WithTitle("reports"))

	assert.Same(t, buf, cfg.Output)
	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "reports", cfg.Title)
}

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}))

	assert.IsType(t, &PlainRenderer{}, r)
}

func TestIsTTY_NonFile(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestProgressTracker_Stats(t *testing.T) {
	// Given: a tracker in the embedding stage
	p := NewProgressTracker()
	p.SetStage(StageEmbedding, 10)

	// When: updating past the total and recording problems
	p.Update(15, "chunk")
	p.AddError(ErrorEvent{IsWarn: true})
	p.AddError(ErrorEvent{})

	// Then: progress is capped and problems are counted
	s := p.Stats()
	assert.Equal(t, StageEmbedding, s.Stage)
	assert.Equal(t, 1.0, s.Progress)
	assert.Equal(t, time.Duration(0), s.ETA)
	assert.Equal(t, "chunk", s.CurrentFile)
	assert.Equal(t, 1, s.WarnCount)
	assert.Equal(t, 1, s.ErrorCount)
}

func TestProgressTracker_SetStageResets(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageSegmenting, 4)
	p.Update(2, "a.txt")

	p.SetStage(StageEmbedding, 0)

	s := p.Stats()
	assert.Equal(t, 0, s.Current)
	assert.Equal(t, 0.0, s.Progress)
	assert.Empty(t, s.CurrentFile)
}
