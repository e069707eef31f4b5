package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatContext_GroupsByEntityInFirstSeenOrder(t *testing.T) {
	res := &RetrievalResult{Hits: []Hit{
		{Chunk: mkChunk("s1", "上海", "上海  建设\n国际金融中心", 0)},
		{Chunk: mkChunk("b1", "北京", "北京推进\t科技创新", 0)},
		{Chunk: mkChunk("s2", "上海", " 上海扩大开放 ", 1)},
	}}

	got := FormatContext(res)

	want := "\n=== 上海 ===\n上海 建设 国际金融中心\n上海扩大开放\n\n=== 北京 ===\n北京推进 科技创新"
	assert.Equal(t, want, got)
}

func TestFormatContext_Empty(t *testing.T) {
	assert.Equal(t, NoContextMessage, FormatContext(&RetrievalResult{}))
	assert.Equal(t, NoContextMessage, FormatContext(nil))
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("对比广东和江苏", "\n=== 广东 ===\n内容", FormatComparison)

	assert.True(t, strings.HasPrefix(p, promptFraming))
	assert.Contains(t, p, "【用户问题】\n对比广东和江苏")
	assert.Contains(t, p, "请以全面的对比形式展示")
	assert.Contains(t, p, "【参考资料】\n\n=== 广东 ===\n内容")
	assert.True(t, strings.HasSuffix(p, promptClosing))

	// The question precedes the instruction, which precedes the context
	assert.Less(t, strings.Index(p, "【用户问题】"), strings.Index(p, "【输出格式要求】"))
	assert.Less(t, strings.Index(p, "【输出格式要求】"), strings.Index(p, "【参考资料】"))
}

func TestInstruction(t *testing.T) {
	for _, f := range []Format{FormatList, FormatDetailed, FormatComparison, FormatStatistics} {
		assert.NotEmpty(t, Instruction(f), f)
	}
	assert.Equal(t, Instruction(FormatList), Instruction("unknown"))
	assert.NotEqual(t, Instruction(FormatList), Instruction(FormatDetailed))
}
