package search

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reportrag/internal/catalog"
	"github.com/Aman-CERP/reportrag/internal/config"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/llm"
	"github.com/Aman-CERP/reportrag/internal/telemetry"
)

func newTestEngine(t *testing.T, completion llm.CompletionService, mutate func(*config.Config), opts ...EngineOption) *Engine {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Query.Timeout = 5 * time.Second
	if mutate != nil {
		mutate(cfg)
	}
	e, err := NewEngine(newFakeVectors(), &fakeEmbedder{}, completion, catalog.Default(), cfg, opts...)
	require.NoError(t, err)
	return e
}

func TestEngine_Query_MultiEntityList(t *testing.T) {
	// Given a completion service answering per entity
	llmFake := &fakeCompletion{fallback: strings.Join([]string{
		"北京：推进科技创新中心建设、加快发展新质生产力",
		"上海：建设国际金融中心、推进浦东高水平开放",
		"广东：实现经济增长5%左右",
	}, "\n")}
	e := newTestEngine(t, llmFake, nil)

	// When three named entities are asked about
	ans, err := e.Query(context.Background(), "北京、上海和广东的主要目标", QueryOptions{})

	// Then one direct batch answers them in list form
	require.NoError(t, err)
	assert.Equal(t, QueryTypeMultiEntity, ans.QueryType)
	assert.Equal(t, StrategySingleQuery, ans.Strategy)
	assert.Equal(t, FormatList, ans.Format)
	require.Len(t, ans.Batches, 1)
	assert.True(t, ans.Batches[0].Success)
	assert.NotEmpty(t, ans.QueryID)

	assert.Equal(t, []string{"北京", "上海", "广东"}, ans.Result.Entities)
	assert.Equal(t, strings.Join([]string{
		"北京：推进科技创新中心建设、加快发展新质生产力",
		"上海：建设国际金融中心、推进浦东高水平开放",
		"广东：实现经济增长5%左右",
	}, "\n"), ans.Result.Content)
	assert.Equal(t, 1.0, ans.Result.Stats.SuccessRate)
	assert.Equal(t, 1, llmFake.promptCount())
}

func TestEngine_Query_ComparisonTable(t *testing.T) {
	llmFake := &fakeCompletion{fallback: strings.Join([]string{
		"| 省份 | 主要目标 |",
		"|---|---|",
		"| 广东 | 实现经济增长5%左右、推进制造业当家 |",
		"| 江苏 | 建设制造强省、推进科技创新 |",
	}, "\n")}
	e := newTestEngine(t, llmFake, nil)

	ans, err := e.Query(context.Background(), "对比广东和江苏的经济发展目标", QueryOptions{})

	require.NoError(t, err)
	assert.Equal(t, FormatComparison, ans.Format)

	lines := strings.Split(ans.Result.Content, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "| 江苏 | 建设制造强省、推进科技创新 | 2 |", lines[2])
	assert.Equal(t, "| 广东 | 实现经济增长5%左右、推进制造业当家 | 2 |", lines[3])

	// The prompt carries the comparison instruction
	require.Len(t, llmFake.prompts, 1)
	assert.Contains(t, llmFake.prompts[0], "请以全面的对比形式展示")
}

func TestEngine_Query_AllBatchesFail(t *testing.T) {
	llmFake := &fakeCompletion{fail: map[string]bool{"": true}}
	e := newTestEngine(t, llmFake, nil)

	ans, err := e.Query(context.Background(), "北京的主要目标", QueryOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ragerrors.ErrAggregationEmpty)
	require.NotNil(t, ans)
	assert.Equal(t, "抱歉，没有获取到有效的查询结果。", ans.Result.Content)
	assert.Equal(t, 0.0, ans.Result.Stats.SuccessRate)
	require.Len(t, ans.Batches, 1)
	assert.False(t, ans.Batches[0].Success)
	assert.ErrorIs(t, ans.Batches[0].Err, ragerrors.ErrBatchFailed)
}

func TestEngine_Query_PartialFailureKeepsOtherBatches(t *testing.T) {
	// Given a nationwide in-depth question planned as four region groups,
	// one of which fails
	llmFake := &fakeCompletion{
		fail:     map[string]bool{"东北地区": true},
		fallback: "北京：推进科技创新中心建设",
	}
	e := newTestEngine(t, llmFake, nil)

	// When answered
	ans, err := e.Query(context.Background(), "列出所有省份的详细目标", QueryOptions{})

	// Then results stay in plan order and the failure only lowers the success rate
	require.NoError(t, err)
	assert.Equal(t, StrategyEntityGroups, ans.Strategy)
	require.Len(t, ans.Batches, 4)
	for i, b := range ans.Batches {
		assert.Equal(t, i, b.Index)
	}
	assert.False(t, ans.Batches[3].Success)
	assert.InDelta(t, 0.75, ans.Result.Stats.SuccessRate, 1e-9)

	// Every expected entity is rendered, most with the placeholder
	assert.Equal(t, []string{"北京"}, ans.Result.Entities)
	assert.Len(t, strings.Split(ans.Result.Content, "\n"), 31)
	assert.Contains(t, ans.Result.Content, "北京：推进科技创新中心建设")
	assert.Contains(t, ans.Result.Content, "黑龙江：信息不足")
}

func TestEngine_Query_FormatOverride(t *testing.T) {
	e := newTestEngine(t, &fakeCompletion{fallback: "北京：推进科技创新中心建设"}, nil)

	ans, err := e.Query(context.Background(), "北京的主要目标", QueryOptions{Format: FormatDetailed})

	require.NoError(t, err)
	assert.Equal(t, FormatDetailed, ans.Format)
	assert.True(t, strings.HasPrefix(ans.Result.Content, "# 各省政府工作报告主要目标汇总"))
}

func TestEngine_Query_Validation(t *testing.T) {
	e := newTestEngine(t, &fakeCompletion{}, nil)

	_, err := e.Query(context.Background(), "   ", QueryOptions{})
	assert.Equal(t, ragerrors.ErrCodeQueryEmpty, ragerrors.GetCode(err))

	_, err = e.Query(context.Background(), "北京", QueryOptions{Format: "pie_chart"})
	assert.Equal(t, ragerrors.ErrCodeUnknownFormat, ragerrors.GetCode(err))

	_, err = e.Query(context.Background(), strings.Repeat("北", MaxQueryLength+1), QueryOptions{})
	assert.Equal(t, ragerrors.ErrCodeQueryTooLong, ragerrors.GetCode(err))
}

func TestEngine_Query_Optimizes(t *testing.T) {
	long := "北京：" + strings.Repeat("推进科技创新中心建设、", 20)
	e := newTestEngine(t, &fakeCompletion{fallback: long}, func(c *config.Config) {
		c.Query.OptimizeThreshold = 10
		c.Query.OptimizeMaxTokens = 10
	})

	ans, err := e.Query(context.Background(), "北京的主要目标", QueryOptions{})

	require.NoError(t, err)
	assert.True(t, ans.Optimized)
	assert.LessOrEqual(t, len([]rune(ans.Result.Content)), 15+len("..."))
}

func TestEngine_Query_Cancelled(t *testing.T) {
	e := newTestEngine(t, &fakeCompletion{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ans, err := e.Query(ctx, "北京的主要目标", QueryOptions{})

	assert.Nil(t, ans)
	assert.Error(t, err)
}

// slowCompletion tracks how many calls run at once.
type slowCompletion struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *slowCompletion) Complete(context.Context, string, llm.Params) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return "北京：推进科技创新中心建设", nil
}

func TestEngine_Query_BoundedParallelism(t *testing.T) {
	slow := &slowCompletion{}
	e := newTestEngine(t, slow, func(c *config.Config) { c.Query.Parallelism = 2 })

	_, err := e.Query(context.Background(), "列出所有省份的详细目标", QueryOptions{})

	require.NoError(t, err)
	assert.LessOrEqual(t, slow.peak.Load(), int32(2))
	assert.GreaterOrEqual(t, slow.peak.Load(), int32(1))
}

func TestEngine_Explain(t *testing.T) {
	llmFake := &fakeCompletion{}
	e := newTestEngine(t, llmFake, nil)

	ex, err := e.Explain("列出所有省份的详细目标", QueryOptions{})

	require.NoError(t, err)
	assert.Equal(t, QueryTypeAllEntities, ex.Intent.Type)
	assert.Equal(t, StrategyEntityGroups, ex.Plan.Strategy)
	assert.Len(t, ex.Plan.Batches, 4)
	assert.Equal(t, 0, llmFake.promptCount())
}

func TestEngine_RecordsMetrics(t *testing.T) {
	m := telemetry.NewQueryMetrics(nil)
	e := newTestEngine(t, &fakeCompletion{fallback: "北京：推进科技创新中心建设"}, nil, WithMetrics(m))

	_, err := e.Query(context.Background(), "北京的主要目标", QueryOptions{})
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.QueryTypeCounts[telemetry.QueryType(QueryTypeSingleEntity)])
}

func TestNewEngine_NilDependencies(t *testing.T) {
	cfg := config.NewConfig()
	_, err := NewEngine(nil, &fakeEmbedder{}, &fakeCompletion{}, catalog.Default(), cfg)
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewEngine(newFakeVectors(), &fakeEmbedder{}, nil, catalog.Default(), cfg)
	assert.ErrorIs(t, err, ErrNilDependency)
}
