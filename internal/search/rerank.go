package search

import (
	"context"
	"fmt"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/rerank"
)

// RerankSearch rescores the candidates of an inner engine with a pairwise
// query/passage reranker. Callers should ask for more candidates than they
// keep so the reranker has headroom.
type RerankSearch struct {
	inner    Engine
	chunks   ChunkSource
	reranker rerank.Reranker
}

// NewRerankSearch wraps inner. chunks resolves candidate ids to text.
func NewRerankSearch(inner Engine, chunks ChunkSource, reranker rerank.Reranker) *RerankSearch {
	return &RerankSearch{inner: inner, chunks: chunks, reranker: reranker}
}

func (r *RerankSearch) Name() string {
	return fmt.Sprintf("rerank(%s,%s)", r.inner.Name(), r.reranker.Name())
}

func (r *RerankSearch) AddChunks(ctx context.Context, chunks map[int]models.Chunk) error {
	return r.inner.AddChunks(ctx, chunks)
}

func (r *RerankSearch) RemoveChunks(ctx context.Context, ids []int) error {
	return r.inner.RemoveChunks(ctx, ids)
}

// Query reranks the inner engine's top k. Candidates whose chunk can no
// longer be resolved are dropped.
func (r *RerankSearch) Query(ctx context.Context, text string, k int) ([]models.ScoreEntry, error) {
	candidates, err := r.inner.Query(ctx, text, k)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(candidates))
	passages := make([]string, 0, len(candidates))
	for _, c := range candidates {
		chunk, ok := r.chunks.Chunk(c.ChunkID)
		if !ok {
			continue
		}
		ids = append(ids, c.ChunkID)
		passages = append(passages, chunk.Content)
	}
	if len(passages) == 0 {
		return nil, nil
	}
	scores, err := r.reranker.Scores(ctx, text, passages)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	if len(scores) != len(passages) {
		return nil, fmt.Errorf("rerank: got %d scores for %d passages", len(scores), len(passages))
	}
	entries := make([]models.ScoreEntry, len(ids))
	for i, id := range ids {
		entries[i] = models.ScoreEntry{Score: scores[i], ChunkID: id}
	}
	return truncate(Merge(Max, entries), k), nil
}

func (r *RerankSearch) Save(dir string) error { return r.inner.Save(dir) }
func (r *RerankSearch) Load(dir string) error { return r.inner.Load(dir) }
func (r *RerankSearch) Reset() error          { return r.inner.Reset() }
func (r *RerankSearch) Close() error          { return r.inner.Close() }
