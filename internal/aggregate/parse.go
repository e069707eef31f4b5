package aggregate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Item separators in priority order. The first one present in a line wins.
var separators = []string{"、", "，", ",", "；", ";", "。", "|"}

// maxHeaderRunes bounds the text before a colon that may name an entity.
const maxHeaderRunes = 16

var (
	listMarker    = regexp.MustCompile(`^(?:[-*•·]\s*|[0-9]+(?:[.．、)）]\s*|\s+)|[一二三四五六七八九十]+、\s*)`)
	headerPattern = regexp.MustCompile(`^([^：:]+?)(?:省|市|自治区)?[：:]`)
	tableRule     = regexp.MustCompile(`^[\s|:\-]+$`)
)

// Sections holds recovered items per entity in first-seen order.
type Sections struct {
	order []string
	items map[string][]string
}

func newSections() *Sections {
	return &Sections{items: make(map[string][]string)}
}

// Entities returns the entities in first-seen order.
func (s *Sections) Entities() []string {
	return append([]string(nil), s.order...)
}

// Items returns the items recovered for entity.
func (s *Sections) Items(entity string) []string {
	return s.items[entity]
}

// Len returns the number of entities.
func (s *Sections) Len() int { return len(s.order) }

func (s *Sections) touch(entity string) {
	if _, ok := s.items[entity]; !ok {
		s.order = append(s.order, entity)
		s.items[entity] = []string{}
	}
}

func (s *Sections) add(entity string, items ...string) {
	s.touch(entity)
	s.items[entity] = append(s.items[entity], items...)
}

// Parse recovers entity sections from one batch answer. A line introduces an
// entity when the text before its first colon names one, when it is a markdown
// heading or a bare line naming one, or when it is a table row whose first cell
// names one. Other lines add items to the most recent entity; lines before the
// first entity are ignored.
func (a *Aggregator) Parse(content string) *Sections {
	out := newSections()
	current := ""

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if entity, rest, ok := a.lineEntity(line); ok {
			current = entity
			out.touch(entity)
			if rest != "" {
				out.add(entity, a.extractItems(rest)...)
			}
			continue
		}

		if current != "" && !strings.HasPrefix(line, "|") {
			out.add(current, a.extractItems(line)...)
		}
	}
	return out
}

// lineEntity detects an entity header and returns the text that follows it.
func (a *Aggregator) lineEntity(line string) (entity, rest string, ok bool) {
	if strings.HasPrefix(line, "|") {
		return a.tableEntity(line)
	}

	if strings.HasPrefix(line, "#") {
		title := cleanHeader(strings.TrimLeft(line, "#"))
		if e, found := a.headerEntity(title); found {
			return e, "", true
		}
		return "", "", false
	}

	if m := headerPattern.FindStringSubmatchIndex(line); m != nil {
		header := cleanHeader(line[m[2]:m[3]])
		if utf8.RuneCountInString(header) <= maxHeaderRunes {
			if e, found := a.headerEntity(header); found {
				return e, strings.TrimSpace(line[m[1]:]), true
			}
		}
		return "", "", false
	}

	bare := cleanHeader(line)
	if utf8.RuneCountInString(bare) <= maxHeaderRunes/2 {
		if e, found := a.cat.Canonical(bare); found {
			return e, "", true
		}
	}
	return "", "", false
}

// headerEntity resolves a header: canonical name contained in it, then the
// alias table on the whole header, then fuzzy containment.
func (a *Aggregator) headerEntity(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	for _, e := range a.cat.Entities() {
		if strings.Contains(header, e) {
			return e, true
		}
	}
	if e, ok := a.cat.ResolveAlias(a.cat.StripSuffix(header)); ok {
		return e, true
	}
	return a.cat.Canonical(header)
}

func (a *Aggregator) tableEntity(line string) (string, string, bool) {
	if tableRule.MatchString(line) {
		return "", "", false
	}
	cells := strings.Split(strings.Trim(line, "| "), "|")
	if len(cells) == 0 {
		return "", "", false
	}
	e, ok := a.cat.Canonical(cleanHeader(cells[0]))
	if !ok {
		return "", "", false
	}
	rest := ""
	if len(cells) > 1 {
		rest = strings.TrimSpace(cells[1])
	}
	return e, rest, true
}

// extractItems splits a line into items and keeps those that look like goals.
func (a *Aggregator) extractItems(line string) []string {
	var parts []string
	split := false
	for _, sep := range separators {
		if strings.Contains(line, sep) {
			parts = strings.Split(line, sep)
			split = true
			break
		}
	}
	if !split {
		parts = []string{line}
	}

	var out []string
	for _, p := range parts {
		p = stripMarker(strings.TrimSpace(p))
		if utf8.RuneCountInString(p) <= 3 {
			continue
		}
		if p == Placeholder {
			continue
		}
		if a.cat.HasTargetKeyword(p) || utf8.RuneCountInString(p) > 10 {
			out = append(out, p)
		}
	}
	return out
}

func stripMarker(s string) string {
	s = strings.Trim(s, "*")
	if loc := listMarker.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	}
	return strings.TrimSpace(s)
}

const headerCutset = "*#-【】[] \t"

func cleanHeader(s string) string {
	s = stripMarker(strings.Trim(strings.TrimSpace(s), headerCutset))
	return strings.Trim(s, headerCutset)
}
