// Package catalog holds the immutable lookup tables shared by query classification,
// batch planning and answer aggregation: the known entities in canonical order,
// single-character aliases, region groups and the keyword tables.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/reportrag/internal/config"
)

// Group is a named, ordered subset of entities.
type Group struct {
	Name     string
	Entities []string
}

// Tagged is a label with the words that trigger it.
type Tagged struct {
	Name  string
	Words []string
}

// Keywords are the classification word lists. Words are matched as substrings
// of the lower-cased query, so English entries must be lower case.
type Keywords struct {
	Scope        []string
	ComplexScope []string
	Comparison   []string
	Statistics   []string
	List         []string
	Detail       []string
	Analysis     []string
	Depth        []string

	Comprehensive []string
	Partial       []string

	Topics  []Tagged
	Actions []Tagged
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	entities       []string
	index          map[string]int
	aliases        map[string]string
	groups         []Group
	targetKeywords []string
	suffixes       []string
	keywords       Keywords
}

// Default returns the catalog of the 31 provincial-level regions.
func Default() *Catalog {
	c, err := build(defaultEntities, defaultAliases, defaultGroups, defaultTargetKeywords)
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid defaults: %v", err))
	}
	return c
}

// FromConfig builds a catalog, replacing each default table that cfg overrides.
// When the entity list is replaced but groups are not, all entities form one group.
func FromConfig(cfg config.CatalogConfig) (*Catalog, error) {
	if cfg.IsZero() {
		return Default(), nil
	}

	entities := defaultEntities
	aliases := defaultAliases
	groups := defaultGroups
	targets := defaultTargetKeywords

	if len(cfg.Entities) > 0 {
		entities = cfg.Entities
		aliases = nil
		groups = []Group{{Name: "all", Entities: cfg.Entities}}
	}
	if len(cfg.Aliases) > 0 {
		aliases = cfg.Aliases
	}
	if len(cfg.Groups) > 0 {
		groups = make([]Group, len(cfg.Groups))
		for i, g := range cfg.Groups {
			groups[i] = Group{Name: g.Name, Entities: g.Entities}
		}
	}
	if len(cfg.TargetKeywords) > 0 {
		targets = cfg.TargetKeywords
	}
	return build(entities, aliases, groups, targets)
}

func build(entities []string, aliases map[string]string, groups []Group, targets []string) (*Catalog, error) {
	c := &Catalog{
		entities:       append([]string(nil), entities...),
		index:          make(map[string]int, len(entities)),
		aliases:        make(map[string]string, len(aliases)),
		targetKeywords: append([]string(nil), targets...),
		suffixes:       defaultSuffixes,
		keywords:       defaultKeywords(),
	}

	for i, e := range c.entities {
		if e == "" {
			return nil, fmt.Errorf("entity %d is empty", i)
		}
		if _, dup := c.index[e]; dup {
			return nil, fmt.Errorf("duplicate entity %q", e)
		}
		c.index[e] = i
	}

	for alias, target := range aliases {
		if _, ok := c.index[target]; !ok {
			return nil, fmt.Errorf("alias %q points at unknown entity %q", alias, target)
		}
		c.aliases[alias] = target
	}

	seen := make(map[string]string)
	for _, g := range groups {
		members := make([]string, 0, len(g.Entities))
		for _, e := range g.Entities {
			if _, ok := c.index[e]; !ok {
				return nil, fmt.Errorf("group %q lists unknown entity %q", g.Name, e)
			}
			if other, dup := seen[e]; dup {
				return nil, fmt.Errorf("entity %q is in both %q and %q", e, other, g.Name)
			}
			seen[e] = g.Name
			members = append(members, e)
		}
		c.groups = append(c.groups, Group{Name: g.Name, Entities: members})
	}

	return c, nil
}

// Entities returns the canonical entity list in catalog order.
func (c *Catalog) Entities() []string {
	return append([]string(nil), c.entities...)
}

// Len returns the number of entities.
func (c *Catalog) Len() int { return len(c.entities) }

// Groups returns the region groups in order.
func (c *Catalog) Groups() []Group {
	out := make([]Group, len(c.groups))
	for i, g := range c.groups {
		out[i] = Group{Name: g.Name, Entities: append([]string(nil), g.Entities...)}
	}
	return out
}

// Keywords returns the classification word lists.
func (c *Catalog) Keywords() Keywords { return c.keywords }

// TargetKeywords returns the words that mark an extracted item as a goal.
func (c *Catalog) TargetKeywords() []string {
	return append([]string(nil), c.targetKeywords...)
}

// HasTargetKeyword reports whether s contains any target keyword.
func (c *Catalog) HasTargetKeyword(s string) bool {
	return ContainsAny(s, c.targetKeywords)
}

// IsEntity reports whether name is a canonical entity.
func (c *Catalog) IsEntity(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Order returns the catalog position of a canonical entity, or -1.
func (c *Catalog) Order(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	return -1
}

// ResolveAlias maps a single-character abbreviation to its canonical entity.
func (c *Catalog) ResolveAlias(alias string) (string, bool) {
	e, ok := c.aliases[alias]
	return e, ok
}

// Aliases returns the alias table as a copy.
func (c *Catalog) Aliases() map[string]string {
	out := make(map[string]string, len(c.aliases))
	for k, v := range c.aliases {
		out[k] = v
	}
	return out
}

// StripSuffix removes one administrative suffix (省, 市, 自治区, 特别行政区).
func (c *Catalog) StripSuffix(name string) string {
	for _, s := range c.suffixes {
		if strings.HasSuffix(name, s) && len(name) > len(s) {
			return strings.TrimSuffix(name, s)
		}
	}
	return name
}

// Canonical normalizes a raw entity name: suffix stripping, exact match, alias
// lookup, then containment against the canonical list (first match in catalog
// order). A single character only matches through the alias table.
// It reports false when nothing matched.
func (c *Catalog) Canonical(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	stripped := c.StripSuffix(name)

	if c.IsEntity(stripped) {
		return stripped, true
	}
	if e, ok := c.aliases[stripped]; ok {
		return e, true
	}
	short := utf8.RuneCountInString(stripped) < 2
	for _, e := range c.entities {
		if strings.Contains(stripped, e) || (!short && strings.Contains(e, stripped)) {
			return e, true
		}
	}
	return name, false
}

// MentionedIn returns the canonical entities occurring in text, in catalog order.
func (c *Catalog) MentionedIn(text string) []string {
	var out []string
	for _, e := range c.entities {
		if strings.Contains(text, e) {
			out = append(out, e)
		}
	}
	return out
}

// Sort orders names in place by catalog position. Unknown names go last, in
// lexical order.
func (c *Catalog) Sort(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		oi, oj := c.Order(names[i]), c.Order(names[j])
		switch {
		case oi >= 0 && oj >= 0:
			return oi < oj
		case oi >= 0:
			return true
		case oj >= 0:
			return false
		}
		return names[i] < names[j]
	})
}

// ContainsAny reports whether s contains any of words.
func ContainsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}
