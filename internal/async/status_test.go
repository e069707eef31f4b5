package async

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/reportrag/internal/ui"
)

func TestIndexProgress_UpdateProgress(t *testing.T) {
	tests := []struct {
		name      string
		events    []ui.ProgressEvent
		wantStage string
		wantPct   float64
	}{
		{
			name:      "no events",
			wantStage: "Scanning",
		},
		{
			name: "half way through embedding",
			events: []ui.ProgressEvent{
				{Stage: ui.StageEmbedding, Total: 400},
				{Stage: ui.StageEmbedding, Current: 200},
			},
			wantStage: "Embedding",
			wantPct:   50,
		},
		{
			name: "stage change resets counters",
			events: []ui.ProgressEvent{
				{Stage: ui.StageSegmenting, Total: 31, Current: 31},
				{Stage: ui.StageIndexing, Message: "Writing search indices"},
			},
			wantStage: "Indexing",
			wantPct:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewIndexProgress()
			for _, ev := range tt.events {
				p.UpdateProgress(ev)
			}

			snap := p.Snapshot()

			assert.Equal(t, tt.wantStage, snap.Stage)
			assert.InDelta(t, tt.wantPct, snap.ProgressPct, 0.001)
		})
	}
}

func TestIndexProgress_WarningsAndErrors(t *testing.T) {
	p := NewIndexProgress()

	p.AddError(ui.ErrorEvent{File: "海南.txt", Err: errors.New("too short"), IsWarn: true})
	p.AddError(ui.ErrorEvent{File: "西藏.txt", Err: errors.New("unreadable")})
	p.SetError("build failed")

	snap := p.Snapshot()
	assert.Equal(t, 1, snap.Warnings)
	assert.Equal(t, "error", snap.Status)
	assert.Equal(t, "build failed", snap.ErrorMessage)
	assert.False(t, p.IsIndexing())
}

func TestIndexProgress_ConcurrentAccess(t *testing.T) {
	p := NewIndexProgress()
	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: i, Total: 10})
		}()
		go func() {
			defer wg.Done()
			_ = p.Snapshot()
		}()
	}
	wg.Wait()

	p.SetReady()
	assert.Equal(t, "ready", p.Snapshot().Status)
}
