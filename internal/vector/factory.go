package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses exact brute-force search.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeHNSW uses an approximate HNSW graph. Good for large corpora.
	IndexTypeHNSW IndexType = "hnsw"
)

// Config selects and tunes a vector index.
type Config struct {
	Type       string
	Dimensions int
	HNSW       HNSWConfig
}

// NewIndex creates a vector index of the configured type ("memory" when empty).
func NewIndex(cfg Config) (Index, error) {
	switch IndexType(cfg.Type) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(cfg.Dimensions)
	case IndexTypeHNSW:
		return NewHNSWIndex(cfg.Dimensions, cfg.HNSW)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, hnsw)", cfg.Type)
	}
}
