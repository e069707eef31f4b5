package aggregate

import (
	"fmt"
	"sort"
	"strings"
)

const (
	listShown       = 5
	comparisonShown = 3
	topKeywords     = 10
)

// render formats entity items. entities is already in display order.
func (a *Aggregator) render(f Format, entities []string, items map[string][]string) string {
	switch f {
	case FormatDetailed:
		return renderDetailed(entities, items)
	case FormatComparison:
		return renderComparison(entities, items)
	case FormatStatistics:
		return a.renderStatistics(entities, items)
	default:
		return renderList(entities, items)
	}
}

func renderList(entities []string, items map[string][]string) string {
	lines := make([]string, 0, len(entities))
	for _, e := range entities {
		its := items[e]
		if len(its) == 0 {
			lines = append(lines, e+"："+Placeholder)
			continue
		}
		s := strings.Join(its[:min(len(its), listShown)], "、")
		if len(its) > listShown {
			s += fmt.Sprintf("等%d项", len(its))
		}
		lines = append(lines, e+"："+s)
	}
	return strings.Join(lines, "\n")
}

func renderDetailed(entities []string, items map[string][]string) string {
	sections := []string{"# 各省政府工作报告主要目标汇总\n"}
	for _, e := range entities {
		sections = append(sections, "## "+e)
		its := items[e]
		if len(its) == 0 {
			sections = append(sections, "暂无具体目标信息")
		}
		for i, it := range its {
			sections = append(sections, fmt.Sprintf("%d. %s", i+1, it))
		}
		sections = append(sections, "")
	}
	return strings.Join(sections, "\n")
}

func renderComparison(entities []string, items map[string][]string) string {
	lines := []string{
		"| 省份 | 主要工作目标 | 目标数量 |",
		"|------|-------------|---------|",
	}
	for _, e := range entities {
		its := items[e]
		summary := Placeholder
		if len(its) > 0 {
			summary = strings.Join(its[:min(len(its), comparisonShown)], "、")
			if len(its) > comparisonShown {
				summary += "..."
			}
		}
		lines = append(lines, fmt.Sprintf("| %s | %s | %d |", e, summary, len(its)))
	}
	return strings.Join(lines, "\n")
}

type keywordCount struct {
	word  string
	count int
}

// keywordFrequency counts, per target keyword, the items containing it.
// Ties keep first-encounter order.
func (a *Aggregator) keywordFrequency(entities []string, items map[string][]string) []keywordCount {
	index := make(map[string]int)
	var counts []keywordCount
	for _, e := range entities {
		for _, it := range items[e] {
			for _, kw := range a.cat.TargetKeywords() {
				if !strings.Contains(it, kw) {
					continue
				}
				i, ok := index[kw]
				if !ok {
					i = len(counts)
					index[kw] = i
					counts = append(counts, keywordCount{word: kw})
				}
				counts[i].count++
			}
		}
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].count > counts[j].count })
	return counts
}

func (a *Aggregator) renderStatistics(entities []string, items map[string][]string) string {
	total, withItems := 0, 0
	for _, e := range entities {
		total += len(items[e])
		if len(items[e]) > 0 {
			withItems++
		}
	}
	avg := 0.0
	if len(entities) > 0 {
		avg = float64(total) / float64(len(entities))
	}

	lines := []string{
		"# 政府工作报告统计分析",
		"",
		"## 基本统计",
		fmt.Sprintf("- 总省份数：%d", len(entities)),
		fmt.Sprintf("- 有目标信息的省份：%d", withItems),
		fmt.Sprintf("- 总目标数量：%d", total),
		fmt.Sprintf("- 平均每省目标数：%.1f", avg),
		"",
	}

	freq := a.keywordFrequency(entities, items)
	if len(freq) > 0 {
		lines = append(lines, "## 目标类型分布")
		for _, kc := range freq[:min(len(freq), topKeywords)] {
			lines = append(lines, fmt.Sprintf("- %s：%d 次", kc.word, kc.count))
		}
	}
	return strings.Join(lines, "\n")
}
