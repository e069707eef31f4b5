package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reportrag/internal/ui"
)

func TestNewBackgroundIndexer(t *testing.T) {
	// Given/When: creating an indexer
	indexer := NewBackgroundIndexer(nil)

	// Then: it is idle with a fresh tracker
	require.NotNil(t, indexer)
	assert.NotNil(t, indexer.Progress())
	assert.False(t, indexer.IsRunning())
	assert.True(t, indexer.Progress().IsIndexing())
}

func TestBackgroundIndexer_RunsAndBecomesReady(t *testing.T) {
	// Given: a build that reports progress
	release := make(chan struct{})
	indexer := NewBackgroundIndexer(func(ctx context.Context, p *IndexProgress) error {
		p.UpdateProgress(ui.ProgressEvent{Stage: ui.StageSegmenting, Total: 31})
		<-release
		p.Complete(ui.CompletionStats{Documents: 31, Chunks: 400})
		return nil
	})

	// When: starting it
	indexer.Start(context.Background())

	// Then: it runs until released
	assert.True(t, indexer.IsRunning())
	close(release)
	require.NoError(t, indexer.Wait())
	assert.False(t, indexer.IsRunning())

	snap := indexer.Progress().Snapshot()
	assert.Equal(t, string(StatusReady), snap.Status)
	assert.Equal(t, 31, snap.Documents)
	assert.Equal(t, 400, snap.Chunks)
	assert.Equal(t, "Complete", snap.Stage)
}

func TestBackgroundIndexer_StopCancelsBuild(t *testing.T) {
	var canceled atomic.Bool
	indexer := NewBackgroundIndexer(func(ctx context.Context, _ *IndexProgress) error {
		<-ctx.Done()
		canceled.Store(true)
		return ctx.Err()
	})

	indexer.Start(context.Background())
	indexer.Stop()
	indexer.Stop()

	assert.True(t, canceled.Load())
	assert.False(t, indexer.IsRunning())
	assert.ErrorIs(t, indexer.Wait(), context.Canceled)
}

func TestBackgroundIndexer_StopBeforeStart(t *testing.T) {
	indexer := NewBackgroundIndexer(nil)

	done := make(chan struct{})
	go func() {
		indexer.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on an indexer that never started")
	}
}

func TestBackgroundIndexer_ParentContextCancel(t *testing.T) {
	indexer := NewBackgroundIndexer(func(ctx context.Context, _ *IndexProgress) error {
		<-ctx.Done()
		return ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())

	indexer.Start(ctx)
	cancel()

	assert.Error(t, indexer.Wait())
	assert.Equal(t, string(StatusError), indexer.Progress().Snapshot().Status)
}

func TestBackgroundIndexer_ErrorSetsProgress(t *testing.T) {
	// Given: a build that fails
	indexer := NewBackgroundIndexer(func(context.Context, *IndexProgress) error {
		return errors.New("documents directory not found")
	})

	// When: running it
	indexer.Start(context.Background())
	err := indexer.Wait()

	// Then: the failure is visible in the snapshot
	require.Error(t, err)
	snap := indexer.Progress().Snapshot()
	assert.Equal(t, "error", snap.Status)
	assert.Contains(t, snap.ErrorMessage, "documents directory not found")
}

func TestBackgroundIndexer_StartOnce(t *testing.T) {
	var runs atomic.Int32
	indexer := NewBackgroundIndexer(func(context.Context, *IndexProgress) error {
		runs.Add(1)
		return nil
	})

	indexer.Start(context.Background())
	indexer.Start(context.Background())
	_ = indexer.Wait()
	indexer.Start(context.Background())

	assert.Equal(t, int32(1), runs.Load())
}
