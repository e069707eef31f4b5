package search

import (
	"regexp"
	"strings"
)

// NoContextMessage replaces the context block when nothing was retrieved.
const NoContextMessage = "未找到相关信息。"

var whitespace = regexp.MustCompile(`\s+`)

var formatInstructions = map[Format]string{
	FormatList: `请按照以下格式详细输出，每个省份包含丰富的信息内容：
省份：【重点工作1】具体措施和目标、【重点工作2】具体措施和目标、【重点工作3】具体措施和目标...

内容要求：
1. 既要包含具体数字数据（如增长率、投资额、项目数量等），也要包含重要的文字描述
2. 详细描述政策措施、发展方向、具体举措和实施方案
3. 每个省份至少包含8-12个重点内容，涵盖经济、社会、民生等各个方面
4. 准确引用原文中的关键表述和重要政策描述
5. 平衡展示量化指标和定性描述，两者同样重要`,

	FormatDetailed: `请提供全面详细的分析报告，内容应包含：
1. 重要的数字指标（GDP、投资额、增长率等）及其背景解释
2. 详细的政策措施、发展理念和战略规划的完整描述
3. 具体项目的名称、建设内容、意义和影响
4. 重要的时间节点、实施步骤和推进计划
5. 深入的背景分析、发展趋势和政策导向
6. 完整的工作重点、改革举措和创新做法

分析要求：
- 数字数据和文字描述并重，提供完整的信息图景
- 深入解读政策背景、实施路径和预期效果
- 突出重要的政策创新和特色做法
- 全面展现政府工作的战略思路和具体安排`,

	FormatComparison: `请以全面的对比形式展示，包含：
1. 关键指标的数字对比，并解释背后的政策差异
2. 政策措施、发展理念和战略重点的深度比较
3. 工作重点、改革方向和创新举措的对比分析
4. 发展模式、推进路径和实施策略的差异
5. 特色做法、亮点工作和经验做法的比较

对比要求：
- 既要有数据对比，也要有政策理念和实施方式的对比
- 深入分析不同地区的发展特色和政策特点
- 突出各地的创新做法和特色亮点
- 全面展现不同发展模式和政策选择`,

	FormatStatistics: `请提供全面的统计汇总信息，包含：
1. 重要指标的数字统计和趋势分析
2. 政策措施的分类汇总和特点分析
3. 工作重点的统计分布和共性特征
4. 发展方向的整体趋势和规律总结
5. 改革举措的类型统计和创新特色

统计要求：
- 数据统计与政策分析并重
- 既要有量化统计，也要有定性总结
- 深入分析共性特征和差异化特点
- 全面展现整体发展态势和政策导向`,
}

const promptFraming = "你是一个资深的政府工作报告综合分析专家。你的任务是基于提供的政府工作报告内容，为用户提供最全面、最深入、最准确的分析。"

const promptPrinciples = `【核心分析原则 - 必须严格遵守】
1. 信息完整性：充分利用参考资料中的所有信息，包括数字数据和文字描述
2. 内容平衡性：数字指标和政策文本同样重要，需要平衡展示
3. 分析深度性：不仅要提取信息，还要解读背景、意义和影响
4. 准确性原则：所有内容都必须准确引用原文，不得编造或推测
5. 全面性要求：涵盖经济、社会、民生、改革等各个方面的内容

【信息挖掘重点】
- 重要的数字指标：GDP、投资、增长率、项目数量等量化数据
- 关键的政策措施：具体的政策安排、改革举措、工作部署
- 发展理念导向：发展思路、战略重点、工作方向
- 具体实施方案：推进步骤、时间安排、责任分工
- 创新特色做法：亮点工作、经验做法、特色举措

【分析深度要求】
- 不仅要列出"是什么"，还要分析"为什么"和"怎么做"
- 既要关注具体数据，也要理解政策背景和实施路径
- 重视政策的系统性、连贯性和创新性
- 突出不同地区的特色和差异化发展`

const promptClosing = "请基于以上参考资料，提供最全面、最深入的专业分析。确保数字数据和文字信息并重，充分展现政府工作报告的丰富内容。"

// Instruction returns the output instruction for f. Unknown formats get the
// list instruction.
func Instruction(f Format) string {
	if s, ok := formatInstructions[f]; ok {
		return s
	}
	return formatInstructions[FormatList]
}

// BuildPrompt assembles the completion prompt for one batch.
func BuildPrompt(query, context string, f Format) string {
	var b strings.Builder
	b.WriteString(promptFraming)
	b.WriteString("\n\n【用户问题】\n")
	b.WriteString(query)
	b.WriteString("\n\n【输出格式要求】\n")
	b.WriteString(Instruction(f))
	b.WriteString("\n\n")
	b.WriteString(promptPrinciples)
	b.WriteString("\n\n【参考资料】\n")
	b.WriteString(context)
	b.WriteString("\n\n")
	b.WriteString(promptClosing)
	return b.String()
}

// FormatContext renders retrieved chunks grouped by entity in first-seen
// order, each group under a "=== entity ===" line, with whitespace collapsed.
func FormatContext(res *RetrievalResult) string {
	if res == nil || res.Empty() {
		return NoContextMessage
	}

	var order []string
	groups := make(map[string][]string)
	for _, h := range res.Hits {
		e := h.Chunk.Entity
		if _, ok := groups[e]; !ok {
			order = append(order, e)
		}
		groups[e] = append(groups[e], whitespace.ReplaceAllString(strings.TrimSpace(h.Chunk.Content), " "))
	}

	parts := make([]string, 0, len(order)+len(res.Hits))
	for _, e := range order {
		parts = append(parts, "\n=== "+e+" ===")
		parts = append(parts, groups[e]...)
	}
	return strings.Join(parts, "\n")
}
