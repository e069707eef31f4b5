package aggregate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reportrag/internal/catalog"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
)

func newTestAggregator() *Aggregator {
	return New(catalog.Default())
}

func TestAggregate_NoSuccessfulBatches(t *testing.T) {
	// Given: two failed batches
	a := newTestAggregator()
	results := []BatchResult{
		{Index: 0, Err: errors.New("timeout")},
		{Index: 1, Err: errors.New("rate limited")},
	}

	// When: aggregating
	res, err := a.Aggregate(results, FormatList, nil)

	// Then: the fixed message is returned with a zero success rate
	require.ErrorIs(t, err, ragerrors.ErrAggregationEmpty)
	assert.Equal(t, EmptyMessage, res.Content)
	assert.Zero(t, res.Stats.SuccessRate)
	assert.Equal(t, 2, res.Stats.TotalBatches)
	assert.Empty(t, res.Entities)
}

func TestAggregate_ListMergesBatches(t *testing.T) {
	// Given: two batches answering for different provinces
	a := newTestAggregator()
	results := []BatchResult{
		{Index: 0, Success: true, Content: "上海市：建设国际科技创新中心、推进浦东新区综合改革"},
		{Index: 1, Success: true, Content: "北京：加快建设国际消费中心城市、推进京津冀协同发展"},
		{Index: 2, Err: errors.New("boom")},
	}

	// When: aggregating as a list
	res, err := a.Aggregate(results, FormatList, nil)

	// Then: entities are rendered in catalog order with their items
	require.NoError(t, err)
	assert.Equal(t, []string{"北京", "上海"}, res.Entities)
	assert.Equal(t,
		"北京：加快建设国际消费中心城市、推进京津冀协同发展\n上海：建设国际科技创新中心、推进浦东新区综合改革",
		res.Content)
	assert.Equal(t, 4, res.TotalItems)
	assert.InDelta(t, 2.0/3.0, res.Stats.SuccessRate, 1e-9)
	assert.Equal(t, 2, res.Stats.SuccessfulBatches)
	assert.Equal(t, 2, res.Stats.EntitiesFound)
}

func TestAggregate_ListCapsAtFiveItems(t *testing.T) {
	a := newTestAggregator()
	content := "广东：推进科技创新、建设交通强省、完善社会保障体系、提升城市品质、" +
		"实现粮食增产、扩大有效投资项目"

	res, err := a.Aggregate([]BatchResult{{Success: true, Content: content}}, FormatList, nil)

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Content, "实现粮食增产等6项"), res.Content)
}

func TestAggregate_ExpectedEntitiesGetPlaceholder(t *testing.T) {
	// Given: a plan expecting two provinces but only one answered
	a := newTestAggregator()
	results := []BatchResult{{Success: true, Content: "江苏：推动制造业高质量发展"}}

	// When: aggregating
	res, err := a.Aggregate(results, FormatList, []string{"广东", "江苏"})

	// Then: the missing one is rendered with the placeholder
	require.NoError(t, err)
	assert.Equal(t, "江苏：推动制造业高质量发展\n广东："+Placeholder, res.Content)
	assert.Equal(t, []string{"江苏"}, res.Entities)
}

func TestAggregate_ComparisonTable(t *testing.T) {
	// Given: a comparison answer for two provinces
	a := newTestAggregator()
	content := strings.Join([]string{
		"广东省：",
		"1. 推进粤港澳大湾区建设",
		"2. 发展新质生产力的重点任务",
		"江苏：推动制造业高质量发展、建设现代化产业体系、实施科技自立自强工程、推进乡村全面振兴",
	}, "\n")

	// When: rendering as a comparison
	res, err := a.Aggregate([]BatchResult{{Success: true, Content: content}}, FormatComparison, nil)

	// Then: a table with a header, a rule and exactly two rows is produced
	require.NoError(t, err)
	lines := strings.Split(res.Content, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "| 省份 | 主要工作目标 | 目标数量 |", lines[0])
	assert.Equal(t, "| 江苏 | 推动制造业高质量发展、建设现代化产业体系、实施科技自立自强工程... | 4 |", lines[2])
	assert.Equal(t, "| 广东 | 推进粤港澳大湾区建设、发展新质生产力的重点任务 | 2 |", lines[3])
}

func TestAggregate_Detailed(t *testing.T) {
	a := newTestAggregator()
	results := []BatchResult{{Success: true, Content: "## 浙江\n- 推进数字经济创新提质\n- 深化山区海岛县发展"}}

	res, err := a.Aggregate(results, FormatDetailed, []string{"福建"})

	require.NoError(t, err)
	want := strings.Join([]string{
		"# 各省政府工作报告主要目标汇总\n",
		"## 浙江",
		"1. 推进数字经济创新提质",
		"2. 深化山区海岛县发展",
		"",
		"## 福建",
		"暂无具体目标信息",
		"",
	}, "\n")
	assert.Equal(t, want, res.Content)
}

func TestAggregate_Statistics(t *testing.T) {
	// Given: items mentioning target keywords
	a := newTestAggregator()
	content := "北京：推进科技创新项目建设、完善养老服务体系\n天津：推进港口建设"

	// When: rendering statistics
	res, err := a.Aggregate([]BatchResult{{Success: true, Content: content}}, FormatStatistics, nil)

	// Then: counts and the keyword distribution are reported
	require.NoError(t, err)
	assert.Contains(t, res.Content, "- 总省份数：2")
	assert.Contains(t, res.Content, "- 有目标信息的省份：2")
	assert.Contains(t, res.Content, "- 总目标数量：3")
	assert.Contains(t, res.Content, "- 平均每省目标数：1.5")
	assert.Contains(t, res.Content, "## 目标类型分布\n- 推进：2 次\n- 建设：2 次")
	assert.Contains(t, res.Content, "- 项目：1 次")
}

func TestAggregate_NoEntitiesKeepsRawContent(t *testing.T) {
	// Given: a general answer that names no province
	a := newTestAggregator()
	results := []BatchResult{
		{Success: true, Content: "新质生产力是创新起主导作用的先进生产力。", Entities: []string{"上海", "北京"}},
	}

	// When: aggregating
	res, err := a.Aggregate(results, FormatList, nil)

	// Then: the answer is passed through and covered entities are reported
	require.NoError(t, err)
	assert.Equal(t, "新质生产力是创新起主导作用的先进生产力。", res.Content)
	assert.Equal(t, []string{"北京", "上海"}, res.Entities)
}

func TestAggregate_InvalidFormatFallsBackToList(t *testing.T) {
	a := newTestAggregator()

	res, err := a.Aggregate([]BatchResult{{Success: true, Content: "海南：建设自由贸易港"}}, Format("xml"), nil)

	require.NoError(t, err)
	assert.Equal(t, FormatList, res.Format)
	assert.Equal(t, "海南：建设自由贸易港", res.Content)
}

func TestAggregate_DuplicatesAcrossBatchesCollapse(t *testing.T) {
	a := newTestAggregator()
	results := []BatchResult{
		{Success: true, Content: "四川：推进科技创新体系建设"},
		{Success: true, Content: "川：推进科技创新体系建设工作"},
	}

	res, err := a.Aggregate(results, FormatList, nil)

	require.NoError(t, err)
	assert.Equal(t, "四川：推进科技创新体系建设工作", res.Content)
	assert.Equal(t, 1, res.TotalItems)
}

func TestOptimize_KeepsEntityLinesWithinBudget(t *testing.T) {
	// Given: content well over a 10-token budget (15 runes)
	a := newTestAggregator()
	content := "标题行没有省份\n北京：目标一\n说明文字\n上海：目标二二二二二二二二二二二二"

	// When: optimizing
	out := a.Optimize(content, 10)

	// Then: only entity lines survive and the overflowing one is dropped
	assert.Equal(t, "北京：目标一", out)
}

func TestOptimize_TruncatesLastLine(t *testing.T) {
	a := newTestAggregator()
	content := "北京：一二三\n上海：" + strings.Repeat("长", 40)

	out := a.Optimize(content, 20)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "北京：一二三", lines[0])
	assert.Equal(t, "上海："+strings.Repeat("长", 20)+"...", lines[1])
}

func TestOptimize_ShortContentUnchanged(t *testing.T) {
	a := newTestAggregator()

	assert.Equal(t, "无省份的短内容", a.Optimize("无省份的短内容", 4000))
	assert.Equal(t, "x", a.Optimize("x", 0))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"list", FormatList, false},
		{"province_list", FormatList, false},
		{" Detailed ", FormatDetailed, false},
		{"comparison", FormatComparison, false},
		{"statistics", FormatStatistics, false},
		{"table", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Equal(t, ragerrors.ErrCodeUnknownFormat, ragerrors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
