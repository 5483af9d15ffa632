// Package vector provides nearest-neighbour indexes over unit-length
// embeddings.
package vector

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("vector index is closed")

// Index stores vectors under caller-assigned keys and answers top-k cosine
// similarity queries.
type Index interface {
	Add(ctx context.Context, keys []uint64, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, keys []uint64) error
	Save(path string) error
	Load(path string) error
	Reset()
	Size() int
	Close() error
}

// Result is a single hit. Score is cosine similarity, higher is closer.
type Result struct {
	Key   uint64
	Score float64
}

// DimensionError reports a vector whose length does not match the index.
type DimensionError struct {
	Expected int
	Got      int
}

func (e DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: got %d, expected %d", e.Got, e.Expected)
}

func checkDimensions(dims int, vectors ...[]float32) error {
	for _, v := range vectors {
		if len(v) != dims {
			return DimensionError{Expected: dims, Got: len(v)}
		}
	}
	return nil
}
