package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reportrag/internal/config"
)

func TestDefault_HasThirtyOneEntitiesInOrder(t *testing.T) {
	c := Default()

	entities := c.Entities()
	require.Len(t, entities, 31)
	assert.Equal(t, "北京", entities[0])
	assert.Equal(t, "新疆", entities[30])
	assert.Equal(t, 18, c.Order("广东"))
	assert.Equal(t, -1, c.Order("台北"))
}

func TestDefault_GroupsPartitionEntities(t *testing.T) {
	c := Default()

	seen := make(map[string]int)
	var names []string
	for _, g := range c.Groups() {
		names = append(names, g.Name)
		for _, e := range g.Entities {
			seen[e]++
		}
	}

	assert.Equal(t, []string{"东部地区", "中部地区", "西部地区", "东北地区"}, names)
	assert.Len(t, seen, 31)
	for e, n := range seen {
		assert.Equal(t, 1, n, "entity %s appears in more than one group", e)
	}
}

func TestCanonical(t *testing.T) {
	c := Default()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"广东", "广东", true},
		{"广东省", "广东", true},
		{"北京市", "北京", true},
		{"内蒙古自治区", "内蒙古", true},
		{"广西壮族自治区", "广西", true},
		{"新疆维吾尔自治区", "新疆", true},
		{"粤", "广东", true},
		{"蜀", "四川", true},
		{" 沪 ", "上海", true},
		{"黑龙", "黑龙江", true},
		{"东", "东", false},
		{"台湾", "台湾", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := c.Canonical(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMentionedIn_ReturnsCatalogOrder(t *testing.T) {
	c := Default()

	// Mention order differs from catalog order.
	got := c.MentionedIn("请对比广东、北京和四川的发展目标")

	assert.Equal(t, []string{"北京", "广东", "四川"}, got)
	assert.Empty(t, c.MentionedIn("今年的主要目标是什么"))
}

func TestStripSuffix_KeepsBareSuffix(t *testing.T) {
	c := Default()

	assert.Equal(t, "市", c.StripSuffix("市"))
	assert.Equal(t, "香港", c.StripSuffix("香港特别行政区"))
}

func TestHasTargetKeyword(t *testing.T) {
	c := Default()

	assert.True(t, c.HasTargetKeyword("推进新型工业化"))
	assert.False(t, c.HasTargetKeyword("春节假期"))
}

func TestFromConfig_ZeroUsesDefaults(t *testing.T) {
	c, err := FromConfig(config.CatalogConfig{})

	require.NoError(t, err)
	assert.Equal(t, 31, c.Len())
}

func TestFromConfig_EnglishEntities(t *testing.T) {
	// Given: an English deployment with its own entities and groups
	cfg := config.CatalogConfig{
		Entities: []string{"Ontario", "Quebec", "Alberta"},
		Aliases:  map[string]string{"ON": "Ontario"},
		Groups: []config.GroupConfig{
			{Name: "Central", Entities: []string{"Ontario", "Quebec"}},
			{Name: "Prairies", Entities: []string{"Alberta"}},
		},
	}

	// When: building the catalog
	c, err := FromConfig(cfg)

	// Then: lookups use the replacement tables
	require.NoError(t, err)
	assert.Equal(t, []string{"Ontario", "Quebec", "Alberta"}, c.Entities())
	got, ok := c.ResolveAlias("ON")
	assert.True(t, ok)
	assert.Equal(t, "Ontario", got)
	assert.Len(t, c.Groups(), 2)
	_, ok = c.ResolveAlias("粤")
	assert.False(t, ok, "default aliases are dropped with the default entities")
}

func TestFromConfig_EntitiesWithoutGroupsFormOneGroup(t *testing.T) {
	c, err := FromConfig(config.CatalogConfig{Entities: []string{"A", "B"}})

	require.NoError(t, err)
	groups := c.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"A", "B"}, groups[0].Entities)
}

func TestFromConfig_RejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.CatalogConfig
	}{
		{"duplicate entity", config.CatalogConfig{Entities: []string{"A", "A"}}},
		{"alias to unknown", config.CatalogConfig{Aliases: map[string]string{"x": "Atlantis"}}},
		{"group with unknown", config.CatalogConfig{Groups: []config.GroupConfig{{Name: "g", Entities: []string{"Atlantis"}}}}},
		{"overlapping groups", config.CatalogConfig{Groups: []config.GroupConfig{
			{Name: "g1", Entities: []string{"北京"}},
			{Name: "g2", Entities: []string{"北京"}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestGroups_ReturnsCopies(t *testing.T) {
	c := Default()

	g := c.Groups()
	g[0].Entities[0] = "changed"

	assert.Equal(t, "北京", c.Groups()[0].Entities[0])
}

func TestSort_CatalogOrderUnknownLast(t *testing.T) {
	c := Default()
	names := []string{"新疆", "未知", "北京", "Atlantis", "广东"}

	c.Sort(names)

	assert.Equal(t, []string{"北京", "广东", "新疆", "Atlantis", "未知"}, names)
}
