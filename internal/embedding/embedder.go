// Package embedding turns text into vectors for semantic search.
//
// Embedders are not required to be safe for concurrent calls. Implementations
// that wrap a single inference session serialize calls themselves.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings for text. isQuery distinguishes search
// queries from indexed passages for models trained with asymmetric prefixes.
type Embedder interface {
	Embed(ctx context.Context, text string, isQuery bool) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, isQuery bool) ([][]float32, error)
	Dimensions() int
	// MaxTokens is the context window of the model; longer passages are
	// split before embedding.
	MaxTokens() int
	Name() string
	Close() error
}

// Options selects and configures an embedder.
type Options struct {
	Type          string // "hashing" or "onnx"
	ModelPath     string
	Dimensions    int
	MaxTokens     int
	CacheSize     int
	QueryPrefix   string
	PassagePrefix string
}

// New builds the embedder described by opts, wrapped in an LRU cache when
// CacheSize is positive.
func New(opts Options) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch opts.Type {
	case "", "hashing":
		e = NewHashingEmbedder(opts.Dimensions, opts.MaxTokens)
	case "onnx":
		e, err = NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens, opts.QueryPrefix, opts.PassagePrefix)
	default:
		err = fmt.Errorf("unknown embedder %q", opts.Type)
	}
	if err != nil {
		return nil, err
	}
	if opts.CacheSize > 0 {
		return NewCachedEmbedder(e, opts.CacheSize)
	}
	return e, nil
}

// embedEach implements EmbedBatch in terms of Embed.
func embedEach(ctx context.Context, e Embedder, texts []string, isQuery bool) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.Embed(ctx, text, isQuery)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
