// Package rerank scores query/passage pairs to reorder a coarse candidate
// list.
package rerank

import (
	"context"
	"fmt"

	"github.com/hyperjump/kensaku/internal/embedding"
)

// Reranker returns one relevance score per passage, higher is better.
type Reranker interface {
	Name() string
	Scores(ctx context.Context, query string, passages []string) ([]float64, error)
}

// New returns the reranker named by kind: "tfidf" or "embedding". The
// embedding reranker needs emb.
func New(kind string, emb embedding.Embedder) (Reranker, error) {
	switch kind {
	case "", "tfidf":
		return TFIDF{}, nil
	case "embedding":
		if emb == nil {
			return nil, fmt.Errorf("embedding reranker needs an embedder")
		}
		return NewEmbedding(emb), nil
	default:
		return nil, fmt.Errorf("unknown reranker %q", kind)
	}
}
