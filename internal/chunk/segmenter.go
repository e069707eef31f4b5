package chunk

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/reportrag/internal/catalog"
)

// Segmenter defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMinLength    = 100

	// entityProbeRunes is how much of a document is searched for an entity name
	// when the file name has none.
	entityProbeRunes = 1000
	titleMaxRunes    = 100
)

// sectionKeywords mark a passage as a goal or key-task section.
var sectionKeywords = []string{
	"主要目标", "工作目标", "发展目标", "重点任务", "主要任务",
	"工作重点", "重点工作", "重点项目", "重大项目", "重大工程",
	"产业发展", "经济发展", "社会发展", "民生改善", "生态环境",
}

var (
	chineseNumerals    = "一二三四五六七八九十"
	summaryKeywords    = []string{"摘要", "概述", "总体"}
	frontmatterPattern = regexp.MustCompile(`(?s)^---\n.+?\n---\n*`)
	headingPattern     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
)

// SegmenterOptions configures paragraph accumulation. Sizes are in runes;
// documents shorter than MinLength are skipped.
type SegmenterOptions struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
	MinLength    int `json:"min_chunk_length"`
}

// Segmenter splits plain-text and markdown reports into overlapping chunks,
// one entity per document.
type Segmenter struct {
	opts    SegmenterOptions
	catalog *catalog.Catalog
	// aliases per entity in catalog order, for file-name detection.
	aliases [][]string
}

// NewSegmenter creates a segmenter. Zero options take the defaults.
func NewSegmenter(cat *catalog.Catalog, opts SegmenterOptions) *Segmenter {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 0
	}
	if opts.MinLength < 0 {
		opts.MinLength = 0
	}

	byEntity := make(map[string][]string)
	for alias, e := range cat.Aliases() {
		byEntity[e] = append(byEntity[e], alias)
	}
	entities := cat.Entities()
	aliases := make([][]string, len(entities))
	for i, e := range entities {
		sort.Strings(byEntity[e])
		aliases[i] = byEntity[e]
	}

	return &Segmenter{opts: opts, catalog: cat, aliases: aliases}
}

// SupportedExtensions returns file extensions this chunker handles.
func (s *Segmenter) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// Chunk splits one document. The entity comes from the file name, then from the
// head of the content, and falls back to UnknownEntity.
func (s *Segmenter) Chunk(ctx context.Context, file *FileInput) ([]*DocumentChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.Valid(file.Content) {
		return nil, fmt.Errorf("%s: content is not valid UTF-8", file.Path)
	}

	text := string(file.Content)
	if ext := strings.ToLower(filepath.Ext(file.Path)); ext == ".md" || ext == ".markdown" {
		text = stripMarkdown(text)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if utf8.RuneCountInString(strings.TrimSpace(text)) < s.opts.MinLength {
		return nil, nil
	}

	entity := s.DetectEntity(filepath.Base(file.Path), text)
	return s.Split(text, entity, filepath.Base(file.Path)), nil
}

// DetectEntity finds the entity a document belongs to. Full names are tried before
// aliases in the file name; only full names are searched in the content.
func (s *Segmenter) DetectEntity(filename, content string) string {
	if found := s.catalog.MentionedIn(filename); len(found) > 0 {
		return found[0]
	}
	entities := s.catalog.Entities()
	for i, e := range entities {
		for _, a := range s.aliases[i] {
			if strings.Contains(filename, a) {
				return e
			}
		}
	}

	head := content
	if utf8.RuneCountInString(head) > entityProbeRunes {
		head = string([]rune(head)[:entityProbeRunes])
	}
	if found := s.catalog.MentionedIn(head); len(found) > 0 {
		return found[0]
	}
	return UnknownEntity
}

// Split accumulates non-empty lines into chunks of at most ChunkSize runes. When a
// chunk is emitted, its last ChunkOverlap runes start the next one. A single line
// longer than ChunkSize becomes its own chunk.
func (s *Segmenter) Split(text, entity, source string) []*DocumentChunk {
	var (
		chunks  []*DocumentChunk
		current []rune
		pos     int
		seq     int
	)

	emit := func() {
		content := strings.TrimSpace(string(current))
		c := New(fmt.Sprintf("%s_%03d", entity, seq), entity, content,
			Categorize(content, sectionKeywords), source, pos, seq)
		c.Metadata = map[string]any{"chunk_index": seq}
		chunks = append(chunks, c)
		pos += c.CharCount
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		para := []rune(line)

		if len(current) > 0 && len(current)+len(para) > s.opts.ChunkSize {
			emit()
			if s.opts.ChunkOverlap > 0 && len(current) > s.opts.ChunkOverlap {
				tail := current[len(current)-s.opts.ChunkOverlap:]
				pos -= len(tail)
				current = append(append(append([]rune(nil), tail...), '\n'), para...)
			} else {
				current = para
			}
			seq++
			continue
		}

		if len(current) > 0 {
			current = append(current, '\n')
		}
		current = append(current, para...)
	}

	if strings.TrimSpace(string(current)) != "" {
		emit()
		chunks[len(chunks)-1].Metadata["is_last_chunk"] = true
	}
	return chunks
}

// Categorize assigns a category: any of targets → target; short text with a
// Chinese numeral → title; summary wording → summary; otherwise content.
func Categorize(text string, targets []string) Category {
	if catalog.ContainsAny(text, targets) {
		return CategoryTarget
	}
	if utf8.RuneCountInString(text) < titleMaxRunes && strings.ContainsAny(text, chineseNumerals) {
		return CategoryTitle
	}
	if catalog.ContainsAny(text, summaryKeywords) {
		return CategorySummary
	}
	return CategoryContent
}

// stripMarkdown drops front matter and heading markers.
func stripMarkdown(text string) string {
	text = frontmatterPattern.ReplaceAllString(text, "")
	return headingPattern.ReplaceAllString(text, "")
}
