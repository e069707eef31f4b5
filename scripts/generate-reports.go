//go:build ignore

// Package main generates synthetic government work reports, one per region,
// for exercising index builds and batched queries at full scale.
// Usage: go run scripts/generate-reports.go -output testdata/reports -paragraphs 40
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/reportrag/internal/catalog"
)

var (
	outputDir  = flag.String("output", "testdata/reports", "Output directory")
	paragraphs = flag.Int("paragraphs", 40, "Paragraphs per report")
	seed       = flag.Uint64("seed", 42, "Random seed for reproducibility")
)

// sections mirror the headings of real reports; each carries its own targets.
var sections = []struct {
	title   string
	targets []string
}{
	{"经济发展", []string{"地区生产总值增长%d%%左右", "固定资产投资增长%d%%", "社会消费品零售总额增长%d%%", "规模以上工业增加值增长%d%%"}},
	{"科技创新", []string{"研发经费投入强度达到%d.%d%%", "高新技术企业突破%d千家", "建设%d个重点实验室", "技术合同成交额增长%d%%"}},
	{"生态环境", []string{"PM2.5平均浓度下降%d%%", "单位地区生产总值能耗下降%d%%", "新增造林%d万亩", "地表水优良比例达到%d%%"}},
	{"民生保障", []string{"城镇新增就业%d万人", "居民人均可支配收入增长%d%%", "新建保障性住房%d万套", "新增学位%d万个"}},
	{"改革开放", []string{"进出口总额增长%d%%", "实际使用外资增长%d%%", "新设经营主体%d万户", "开通国际航线%d条"}},
}

var actions = []string{"推进", "加快", "深化", "实施", "巩固", "扩大", "提升"}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewPCG(*seed, *seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	entities := catalog.Default().Entities()
	for _, e := range entities {
		path := filepath.Join(*outputDir, e+".txt")
		if err := os.WriteFile(path, []byte(report(rng, e, *paragraphs)), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
	}
	fmt.Printf("Generated %d reports in %s\n", len(entities), *outputDir)
}

func report(rng *rand.Rand, entity string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s政府工作报告\n\n", entity)
	fmt.Fprintf(&b, "各位代表：现在，我代表%s人民政府，向大会报告政府工作。\n\n", entity)

	for i := range n {
		sec := sections[i%len(sections)]
		if i < len(sections) {
			fmt.Fprintf(&b, "%s、%s\n", chineseNumeral(i+1), sec.title)
		}
		target := sec.targets[rng.IntN(len(sec.targets))]
		action := actions[rng.IntN(len(actions))]
		fmt.Fprintf(&b, "%s%s高质量发展，%s。%s重点领域改革，确保各项任务落实到位。\n\n",
			action, sec.title, fillTarget(rng, target), actions[rng.IntN(len(actions))])
	}
	return b.String()
}

func fillTarget(rng *rand.Rand, tmpl string) string {
	args := make([]any, strings.Count(tmpl, "%d"))
	for i := range args {
		args[i] = 1 + rng.IntN(9)
	}
	return fmt.Sprintf(tmpl, args...)
}

func chineseNumeral(n int) string {
	numerals := []string{"零", "一", "二", "三", "四", "五", "六", "七", "八", "九", "十"}
	if n < len(numerals) {
		return numerals[n]
	}
	return fmt.Sprint(n)
}
