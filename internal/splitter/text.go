// Package splitter cuts documents into chunks that fit a token budget.
//
// Plain text is packed line by line with roughly one third overlap between
// consecutive chunks. Markdown is split along its heading tree so that a
// chunk holds whole sections whenever they fit.
package splitter

import (
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/tokens"
)

// SplitText splits plain text into chunks in document order. Every chunk
// counts fewer than maxTokens tokens unless it is a single line that is too
// long on its own.
func SplitText(url, text string, counter tokens.Counter, maxTokens int) []models.Chunk {
	return splitLines(url, normalizeNewlines(text), counter, maxTokens, false)
}

func splitLines(url, text string, counter tokens.Counter, maxTokens int, markdown bool) []models.Chunk {
	if counter.CountTokens(text) < maxTokens {
		return appendChunk(nil, url, text, markdown)
	}
	var (
		chunks  []models.Chunk
		current []string
	)
	for _, line := range strings.Split(text, "\n") {
		if len(current) == 0 || fits(counter, current, line, maxTokens) {
			current = append(current, line)
			continue
		}
		chunks = appendChunk(chunks, url, strings.Join(current, "\n"), markdown)
		current = overlapSeed(current)
		for len(current) > 0 && !fits(counter, current, line, maxTokens) {
			current = current[1:]
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		chunks = appendChunk(chunks, url, strings.Join(current, "\n"), markdown)
	}
	return chunks
}

// overlapSeed returns the last third of lines, rounded up, as a fresh slice.
func overlapSeed(lines []string) []string {
	keep := (len(lines) + 2) / 3
	return append([]string(nil), lines[len(lines)-keep:]...)
}

func fits(counter tokens.Counter, current []string, line string, maxTokens int) bool {
	return counter.CountTokens(strings.Join(current, "\n")+"\n"+line) < maxTokens
}

func appendChunk(chunks []models.Chunk, url, content string, markdown bool) []models.Chunk {
	c := models.NewChunk(url, content, markdown)
	if c.Content == "" {
		return chunks
	}
	return append(chunks, c)
}

func normalizeNewlines(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}
