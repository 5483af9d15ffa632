// Package search defines the chunk search engine contract and its variants:
// vector and keyword engines, hybrid score fusion and reranking.
//
// Variants compose by wrapping: a HybridSearch holds two engines and a
// RerankSearch holds one.
package search

import (
	"context"
	"sort"

	"github.com/hyperjump/kensaku/internal/models"
)

// Engine indexes chunks by id and answers ranked queries over them.
//
// Query returns entries sorted by descending score with at most one entry per
// chunk id. Save and Load persist the engine's state inside a snapshot
// directory; Load of a directory written by Save restores an equivalent
// engine.
type Engine interface {
	Name() string
	AddChunks(ctx context.Context, chunks map[int]models.Chunk) error
	RemoveChunks(ctx context.Context, ids []int) error
	Query(ctx context.Context, text string, k int) ([]models.ScoreEntry, error)
	Save(dir string) error
	Load(dir string) error
	// Reset drops every indexed chunk.
	Reset() error
	Close() error
}

// ChunkSource resolves chunk ids to their content.
type ChunkSource interface {
	Chunk(id int) (models.Chunk, bool)
}

func sortedIDs(chunks map[int]models.Chunk) []int {
	ids := make([]int, 0, len(chunks))
	for id := range chunks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
