package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/Aman-CERP/reportrag/internal/chunk"
	"github.com/Aman-CERP/reportrag/internal/llm"
	"github.com/Aman-CERP/reportrag/internal/store"
)

var errFake = errors.New("fake failure")

type searchCall struct {
	k      int
	filter store.Filter
}

// fakeVectors serves chunks ordered by a fixed distance per chunk ID.
type fakeVectors struct {
	mu        sync.Mutex
	chunks    []*chunk.DocumentChunk
	distances map[string]float32
	err       error
	calls     []searchCall
}

func newFakeVectors(chunks ...*chunk.DocumentChunk) *fakeVectors {
	return &fakeVectors{chunks: chunks, distances: map[string]float32{}}
}

func (f *fakeVectors) Search(_ context.Context, _ []float32, k int, flt store.Filter) ([]store.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, searchCall{k: k, filter: flt})
	if f.err != nil {
		return nil, f.err
	}

	var out []store.ScoredChunk
	for _, c := range f.chunks {
		if flt.Match(c) {
			out = append(out, store.ScoredChunk{Chunk: c, Distance: f.distances[c.ID]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeVectors) Neighbors(_ context.Context, c *chunk.DocumentChunk, window int) ([]*chunk.DocumentChunk, error) {
	var out []*chunk.DocumentChunk
	for _, n := range f.chunks {
		if n.Source == c.Source && n.Entity == c.Entity &&
			n.Sequence >= c.Sequence-window && n.Sequence <= c.Sequence+window {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (f *fakeVectors) searchCalls() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.calls...)
}

// fakeKeywords returns every chunk passing the filter, in order.
type fakeKeywords struct {
	chunks []*chunk.DocumentChunk
	calls  int
}

func (f *fakeKeywords) Search(_ context.Context, _ string, limit int, flt store.Filter) ([]store.ScoredChunk, error) {
	f.calls++
	var out []store.ScoredChunk
	for _, c := range f.chunks {
		if flt.Match(c) && len(out) < limit {
			out = append(out, store.ScoredChunk{Chunk: c, Distance: 1})
		}
	}
	return out, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

// fakeCompletion answers by the first matching prompt substring.
type fakeCompletion struct {
	mu      sync.Mutex
	replies map[string]string
	fail    map[string]bool
	prompts []string
	fallback string
}

func (f *fakeCompletion) Complete(_ context.Context, prompt string, _ llm.Params) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	for key := range f.fail {
		if strings.Contains(prompt, key) {
			return "", errFake
		}
	}
	for key, reply := range f.replies {
		if strings.Contains(prompt, key) {
			return reply, nil
		}
	}
	return f.fallback, nil
}

func (f *fakeCompletion) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func mkChunk(id, entity, content string, seq int) *chunk.DocumentChunk {
	return chunk.New(id, entity, content, chunk.CategoryContent, entity+".txt", seq*100, seq)
}

func mkTarget(id, entity, content string, seq int) *chunk.DocumentChunk {
	return chunk.New(id, entity, content, chunk.CategoryTarget, entity+".txt", seq*100, seq)
}
