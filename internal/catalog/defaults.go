package catalog

// Compiled-in tables for the 31 provincial-level regions of mainland China.

var defaultEntities = []string{
	"北京", "天津", "河北", "山西", "内蒙古", "辽宁", "吉林", "黑龙江",
	"上海", "江苏", "浙江", "安徽", "福建", "江西", "山东", "河南",
	"湖北", "湖南", "广东", "广西", "海南", "重庆", "四川", "贵州",
	"云南", "西藏", "陕西", "甘肃", "青海", "宁夏", "新疆",
}

var defaultAliases = map[string]string{
	"京": "北京", "津": "天津", "冀": "河北", "晋": "山西", "蒙": "内蒙古",
	"辽": "辽宁", "吉": "吉林", "黑": "黑龙江", "沪": "上海", "苏": "江苏",
	"浙": "浙江", "皖": "安徽", "闽": "福建", "赣": "江西", "鲁": "山东",
	"豫": "河南", "鄂": "湖北", "湘": "湖南", "粤": "广东", "桂": "广西",
	"琼": "海南", "渝": "重庆", "川": "四川", "蜀": "四川", "黔": "贵州",
	"贵": "贵州", "滇": "云南", "云": "云南", "藏": "西藏", "陕": "陕西",
	"秦": "陕西", "甘": "甘肃", "陇": "甘肃", "青": "青海", "宁": "宁夏",
	"新": "新疆",
}

var defaultGroups = []Group{
	{Name: "东部地区", Entities: []string{"北京", "天津", "河北", "上海", "江苏", "浙江", "福建", "山东", "广东", "海南"}},
	{Name: "中部地区", Entities: []string{"山西", "安徽", "江西", "河南", "湖北", "湖南"}},
	{Name: "西部地区", Entities: []string{"内蒙古", "广西", "重庆", "四川", "贵州", "云南", "西藏", "陕西", "甘肃", "青海", "宁夏", "新疆"}},
	{Name: "东北地区", Entities: []string{"辽宁", "吉林", "黑龙江"}},
}

var defaultTargetKeywords = []string{
	"目标", "任务", "重点", "计划", "规划", "工程", "项目", "举措",
	"推进", "发展", "建设", "完善", "提升", "增长", "实现", "达到",
}

// Suffixes stripped from administrative names, longest first.
var defaultSuffixes = []string{"特别行政区", "自治区", "省", "市"}

func defaultKeywords() Keywords {
	return Keywords{
		Scope:        []string{"所有省份", "各省", "31省", "全国", "all provinces", "every province", "nationwide"},
		ComplexScope: []string{"所有省份", "31省", "全国", "all provinces", "nationwide"},
		Comparison:   []string{"对比", "比较", "compare", "comparison", "versus"},
		Statistics:   []string{"统计", "汇总", "总结", "statistics", "summarize", "summary"},
		List:         []string{"列出", "列举", "list"},
		Detail:       []string{"详细", "具体", "深入", "detailed", "in depth", "in detail"},
		Analysis:     []string{"对比", "分析", "统计", "compare", "analyze", "analysis", "statistics"},
		Depth:        []string{"详细", "深入", "全面", "detailed", "in depth", "comprehensive"},

		Comprehensive: []string{"所有", "全部", "全国", "31省", "all provinces", "nationwide"},
		Partial:       []string{"部分", "某些", "几个", "some provinces", "several"},
		Topics: []Tagged{
			{Name: "economic", Words: []string{"经济", "gdp", "产业", "发展", "economy", "economic"}},
			{Name: "social", Words: []string{"社会", "民生", "教育", "医疗", "social", "education", "health"}},
			{Name: "environment", Words: []string{"环境", "生态", "绿色", "environment", "ecology", "green"}},
			{Name: "targets", Words: []string{"目标", "任务", "重点", "计划", "target", "goal", "task"}},
		},
		Actions: []Tagged{
			{Name: "list", Words: []string{"列出", "列举", "显示", "list", "show"}},
			{Name: "analyze", Words: []string{"分析", "解析", "analyze", "analyse"}},
			{Name: "compare", Words: []string{"对比", "比较", "compare"}},
		},
	}
}
