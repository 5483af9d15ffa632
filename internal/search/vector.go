package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/splitter"
	"github.com/hyperjump/kensaku/internal/tokens"
	"github.com/hyperjump/kensaku/internal/vector"
)

const (
	vectorIndexFile = "vector_index.bin"
	vectorMetaFile  = "vector_index.meta.json"

	// DefaultMaxPool caps the candidate pool when deduplication forces a
	// vector query to be widened.
	DefaultMaxPool = 4096
)

// VectorSearch embeds chunks and answers queries by nearest neighbours.
//
// A chunk longer than the embedder's context window is split again into
// sub-chunks. Each sub-chunk gets its own vector under a fresh key, and all
// keys of a chunk map back to its id, so a query returns the parent chunk.
type VectorSearch struct {
	mu       sync.RWMutex
	embedder embedding.Embedder
	index    vector.Index
	counter  tokens.Counter
	maxPool  int
	logger   *zap.Logger

	subKeys map[int][]uint64
	owner   map[uint64]int
	nextKey uint64
}

// VectorOption configures a VectorSearch.
type VectorOption func(*VectorSearch)

// WithMaxPool caps the widened candidate pool.
func WithMaxPool(n int) VectorOption {
	return func(v *VectorSearch) {
		if n > 0 {
			v.maxPool = n
		}
	}
}

// WithVectorLogger sets the logger.
func WithVectorLogger(l *zap.Logger) VectorOption {
	return func(v *VectorSearch) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewVectorSearch creates an empty engine over index. counter measures
// sub-chunks against the embedder's MaxTokens.
func NewVectorSearch(emb embedding.Embedder, index vector.Index, counter tokens.Counter, opts ...VectorOption) *VectorSearch {
	v := &VectorSearch{
		embedder: emb,
		index:    index,
		counter:  counter,
		maxPool:  DefaultMaxPool,
		logger:   zap.NewNop(),
		subKeys:  make(map[int][]uint64),
		owner:    make(map[uint64]int),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *VectorSearch) Name() string { return "vector" }

// AddChunks embeds every sub-chunk of chunks and adds the vectors to the
// index. A chunk id that is already indexed is replaced.
func (v *VectorSearch) AddChunks(ctx context.Context, chunks map[int]models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	var (
		texts  []string
		owners []int
	)
	for _, id := range sortedIDs(chunks) {
		c := chunks[id]
		parts := splitter.SplitText(c.URL, c.Content, v.counter, v.embedder.MaxTokens())
		if len(parts) == 0 {
			parts = []models.Chunk{c}
		}
		for _, p := range parts {
			texts = append(texts, p.Content)
			owners = append(owners, id)
		}
	}

	vecs, err := v.embedder.EmbedBatch(ctx, texts, false)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	var replaced []int
	for id := range chunks {
		if _, ok := v.subKeys[id]; ok {
			replaced = append(replaced, id)
		}
	}
	if err := v.removeLocked(ctx, replaced); err != nil {
		return err
	}
	keys := make([]uint64, len(vecs))
	for i := range keys {
		keys[i] = v.nextKey + uint64(i)
	}
	if err := v.index.Add(ctx, keys, vecs); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}
	v.nextKey += uint64(len(keys))
	for i, key := range keys {
		id := owners[i]
		v.subKeys[id] = append(v.subKeys[id], key)
		v.owner[key] = id
	}
	v.logger.Debug("vectors added", zap.Int("chunks", len(chunks)), zap.Int("vectors", len(keys)))
	return nil
}

// RemoveChunks removes every sub-chunk vector of ids. Unknown ids are ignored.
func (v *VectorSearch) RemoveChunks(ctx context.Context, ids []int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.removeLocked(ctx, ids)
}

func (v *VectorSearch) removeLocked(ctx context.Context, ids []int) error {
	var keys []uint64
	for _, id := range ids {
		keys = append(keys, v.subKeys[id]...)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := v.index.Remove(ctx, keys); err != nil {
		return fmt.Errorf("remove vectors: %w", err)
	}
	for _, id := range ids {
		for _, key := range v.subKeys[id] {
			delete(v.owner, key)
		}
		delete(v.subKeys, id)
	}
	return nil
}

// Query returns up to k chunks nearest to text, keeping the best sub-chunk
// score per chunk. When sub-chunks of the same chunk crowd the candidate
// pool, the pool is doubled until k distinct chunks are found, the index is
// exhausted or the pool reaches its cap.
func (v *VectorSearch) Query(ctx context.Context, text string, k int) ([]models.ScoreEntry, error) {
	if k <= 0 {
		return nil, nil
	}
	q, err := v.embedder.Embed(ctx, text, true)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	pool := k
	for {
		hits, err := v.index.Search(ctx, q, pool)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		var entries []models.ScoreEntry
		for _, h := range hits {
			if id, ok := v.owner[h.Key]; ok {
				entries = append(entries, models.ScoreEntry{Score: h.Score, ChunkID: id})
			}
		}
		best := Merge(Max, entries)
		if len(best) >= k || len(hits) < pool || pool >= v.maxPool {
			return truncate(best, k), nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v.logger.Debug("widening vector candidate pool",
			zap.Int("pool", pool), zap.Int("distinct", len(best)), zap.Int("k", k))
		pool = min(pool*2, v.maxPool)
	}
}

type vectorMeta struct {
	NextKey uint64           `json:"nextKey"`
	SubKeys map[int][]uint64 `json:"subKeys"`
}

// Save writes the index and the sub-key mapping into dir.
func (v *VectorSearch) Save(dir string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.index.Save(filepath.Join(dir, vectorIndexFile)); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}
	data, err := json.Marshal(vectorMeta{NextKey: v.nextKey, SubKeys: v.subKeys})
	if err != nil {
		return fmt.Errorf("encode vector metadata: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(dir, vectorMetaFile), data, 0o644); err != nil {
		return fmt.Errorf("write vector metadata: %w", err)
	}
	return nil
}

// Load replaces the engine state with the one saved in dir. A directory
// without vector files yields an empty engine.
func (v *VectorSearch) Load(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, vectorMetaFile))
	if errors.Is(err, os.ErrNotExist) {
		return v.Reset()
	}
	if err != nil {
		return fmt.Errorf("read vector metadata: %w", err)
	}
	var meta vectorMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("decode vector metadata: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.index.Load(filepath.Join(dir, vectorIndexFile)); err != nil {
		return fmt.Errorf("load vector index: %w", err)
	}
	v.nextKey = meta.NextKey
	v.subKeys = make(map[int][]uint64, len(meta.SubKeys))
	v.owner = make(map[uint64]int)
	for id, keys := range meta.SubKeys {
		v.subKeys[id] = keys
		for _, key := range keys {
			v.owner[key] = id
		}
	}
	return nil
}

func (v *VectorSearch) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.index.Reset()
	v.subKeys = make(map[int][]uint64)
	v.owner = make(map[uint64]int)
	v.nextKey = 0
	return nil
}

// Close closes the index. The embedder belongs to the caller.
func (v *VectorSearch) Close() error {
	return v.index.Close()
}
