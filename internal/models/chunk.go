// Package models defines the chunk, file and scoring types shared by the
// document store, search engines and API.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Chunk is an immutable span of source text plus the URL it was taken from.
// Two chunks are duplicates when URL and Content match; IsMarkdown does not
// take part in equality.
type Chunk struct {
	URL        string `json:"url"`
	Content    string `json:"content"`
	IsMarkdown bool   `json:"isMarkdown"`
}

// ChunkKey identifies a chunk by value.
type ChunkKey struct {
	URL     string
	Content string
}

// NewChunk builds a chunk with content trimmed of surrounding whitespace.
func NewChunk(url, content string, isMarkdown bool) Chunk {
	return Chunk{URL: url, Content: strings.TrimSpace(content), IsMarkdown: isMarkdown}
}

// Key returns the value used for equality and hashing.
func (c Chunk) Key() ChunkKey {
	return ChunkKey{URL: c.URL, Content: c.Content}
}

// Equal reports whether c and o have the same URL and content.
func (c Chunk) Equal(o Chunk) bool {
	return c.Key() == o.Key()
}

func (c Chunk) String() string {
	return fmt.Sprintf("URL: %s\n\n%s", c.URL, c.Content)
}

// Markdown renders the chunk as a source link followed by its content, the
// form used when chunks are pasted into a prompt.
func (c Chunk) Markdown() string {
	return fmt.Sprintf("[%s](%s)\n\n%s", c.URL, c.URL, c.Content)
}

// File records a tracked source file: its modification time when indexed and
// the ids of the chunks it owns, in document order.
type File struct {
	UpdateDate time.Time `json:"updateDate"`
	ChunkIDs   []int     `json:"chunkIndices"`
}

// Snapshot is the persistable state of a document store.
type Snapshot struct {
	Files      map[string]File `json:"files"`
	Chunks     map[int]Chunk   `json:"chunks"`
	MaxChunkID int             `json:"maxChunkId"`
}

// NewSnapshot returns an empty snapshot with initialized maps.
func NewSnapshot() *Snapshot {
	return &Snapshot{Files: make(map[string]File), Chunks: make(map[int]Chunk)}
}
