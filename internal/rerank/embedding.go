package rerank

import (
	"context"

	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/vector"
)

// Embedding scores passages by cosine similarity between the query embedding
// and each passage embedding.
type Embedding struct {
	embedder embedding.Embedder
}

// NewEmbedding returns a reranker backed by emb.
func NewEmbedding(emb embedding.Embedder) *Embedding {
	return &Embedding{embedder: emb}
}

func (e *Embedding) Name() string { return "embedding" }

func (e *Embedding) Scores(ctx context.Context, query string, passages []string) ([]float64, error) {
	q, err := e.embedder.Embed(ctx, query, true)
	if err != nil {
		return nil, err
	}
	vecs, err := e.embedder.EmbedBatch(ctx, passages, false)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(vecs))
	for i, v := range vecs {
		scores[i] = vector.CosineSimilarity(q, v)
	}
	return scores, nil
}
