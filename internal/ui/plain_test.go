package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlainRenderer_UpdateProgress_OutputFormat(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: updating progress with a current file
	r.UpdateProgress(ProgressEvent{
		Stage:       StageSegmenting,
		Current:     3,
		Total:       31,
		CurrentFile: "北京.txt",
	})

	// Then: the line carries the stage tag, counters and file
	assert.Equal(t, "[SEGMENT] 3/31 北京.txt\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_MessageWithoutTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Message: "Scanning reports"})
	r.UpdateProgress(ProgressEvent{Stage: StageScanning})

	// Events with neither a total nor a message print nothing
	assert.Equal(t, "[SCAN] Scanning reports\n", buf.String())
}

func TestPlainRenderer_NoANSICodes(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	for _, stage := range []Stage{StageScanning, StageSegmenting, StageEmbedding, StageIndexing, StageComplete} {
		r.UpdateProgress(ProgressEvent{Stage: stage, Current: 1, Total: 2, Message: "working"})
	}
	r.Complete(CompletionStats{Documents: 1, Chunks: 2})

	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestPlainRenderer_AddError(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.AddError(ErrorEvent{File: "bad.txt", Err: errors.New("not UTF-8"), IsWarn: true})
	r.AddError(ErrorEvent{Err: errors.New("disk full")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"WARN: bad.txt: not UTF-8", "ERROR: disk full"}, lines)
}

func TestPlainRenderer_Complete(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.Complete(CompletionStats{
		Documents: 31,
		Chunks:    420,
		Entities:  31,
		Duration:  2 * time.Second,
		Warnings:  1,
		Stages:    StageTimings{Embed: time.Second},
		Embedder:  EmbedderInfo{Backend: "static", Model: "static-hash", Dimensions: 256},
	})

	out := buf.String()
	assert.Contains(t, out, "Complete: 31 documents, 420 chunks, 31 entities in 2s (0 errors, 1 warnings)")
	assert.Contains(t, out, "embed 1s")
	assert.Contains(t, out, "embedder: static (static-hash, 256 dims)")
}

func TestPlainRenderer_NilOutput(t *testing.T) {
	r := NewPlainRenderer(Config{})

	assert.NotPanics(t, func() {
		r.UpdateProgress(ProgressEvent{Stage: StageScanning, Message: "x"})
		r.Complete(CompletionStats{})
	})
}
