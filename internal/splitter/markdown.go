package splitter

import (
	"regexp"
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/tokens"
)

var headingLine = regexp.MustCompile(`^(#+)(\s|$)`)

const codeFence = "```"

// section is a node of the heading tree. lines holds the heading line (if
// any) followed by the body text directly under it.
type section struct {
	level    int
	lines    []string
	children []*section

	tokens  int
	counted bool
}

func (s *section) lastChild() *section {
	return s.children[len(s.children)-1]
}

func (s *section) insertText(line string) {
	if len(s.children) == 0 {
		s.lines = append(s.lines, line)
		return
	}
	s.lastChild().insertText(line)
}

func (s *section) insertHeading(line string, level int) {
	if len(s.children) == 0 || level <= s.lastChild().level {
		s.children = append(s.children, &section{level: level, lines: []string{line}})
		return
	}
	s.lastChild().insertHeading(line, level)
}

func (s *section) own() string {
	return strings.Join(s.lines, "\n")
}

func (s *section) heading() string {
	if s.level == 0 || len(s.lines) == 0 {
		return ""
	}
	return s.lines[0]
}

func (s *section) render() string {
	parts := make([]string, 0, 1+len(s.children))
	if len(s.lines) > 0 {
		parts = append(parts, s.own())
	}
	for _, c := range s.children {
		parts = append(parts, c.render())
	}
	return strings.Join(parts, "\n")
}

func (s *section) countTokens(counter tokens.Counter) int {
	if !s.counted {
		s.tokens = counter.CountTokens(s.render())
		s.counted = true
	}
	return s.tokens
}

func (s *section) chunks(url string, counter tokens.Counter, maxTokens int) []models.Chunk {
	local := url + HeadingFragment(s.heading())
	if s.countTokens(counter) < maxTokens {
		return appendChunk(nil, local, s.render(), true)
	}
	var out []models.Chunk
	own := strings.TrimSpace(s.own())
	if own != "" && own != strings.TrimSpace(s.heading()) {
		out = append(out, splitLines(local, own, counter, maxTokens, true)...)
	}
	for _, c := range s.children {
		out = append(out, c.chunks(url, counter, maxTokens)...)
	}
	return out
}

// parseMarkdown builds the heading tree. Lines inside fenced code blocks are
// always body text.
func parseMarkdown(text string) *section {
	root := &section{}
	inCode := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, codeFence) {
			inCode = !inCode
		}
		if m := headingLine.FindStringSubmatch(line); m != nil && !inCode {
			root.insertHeading(line, len(m[1]))
			continue
		}
		root.insertText(line)
	}
	if strings.TrimSpace(root.own()) == "" && len(root.children) == 1 {
		return root.children[0]
	}
	return root
}

// SplitMarkdown splits markdown along its heading tree. A section that fits
// the budget becomes one chunk whose URL carries the section's heading
// fragment; larger sections are split into their own body text and their
// subsections.
func SplitMarkdown(url, text string, counter tokens.Counter, maxTokens int) []models.Chunk {
	text = normalizeNewlines(text)
	if counter.CountTokens(text) < maxTokens {
		return appendChunk(nil, url, text, true)
	}
	return parseMarkdown(text).chunks(url, counter, maxTokens)
}
