package vector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/renameio"
)

// HNSWConfig tunes the approximate index.
type HNSWConfig struct {
	M        int
	EfSearch int
}

// HNSWIndex is an approximate index backed by a pure Go HNSW graph.
//
// Removal is lazy: keys leave the live set but their nodes stay in the graph
// and are filtered out of results. Search widens the graph query by the
// number of orphaned nodes so k live hits are still found. Once orphans
// outnumber live nodes the graph is rebuilt from the live set.
type HNSWIndex struct {
	mu         sync.RWMutex
	dimensions int
	cfg        HNSWConfig
	graph      *hnsw.Graph[uint64]
	live       map[uint64]struct{}
	closed     bool
}

type hnswMetadata struct {
	Dimensions int
	Live       []uint64
	Nodes      int
}

// NewHNSWIndex creates an empty HNSW index using cosine distance.
func NewHNSWIndex(dimensions int, cfg HNSWConfig) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 20
	}
	idx := &HNSWIndex{dimensions: dimensions, cfg: cfg}
	idx.Reset()
	return idx, nil
}

func (h *HNSWIndex) newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = h.cfg.M
	g.EfSearch = h.cfg.EfSearch
	g.Ml = 0.25
	return g
}

// Add inserts vectors under keys. Keys must not be reused after removal.
func (h *HNSWIndex) Add(ctx context.Context, keys []uint64, vectors [][]float32) error {
	if len(keys) != len(vectors) {
		return fmt.Errorf("keys and vectors length mismatch: %d vs %d", len(keys), len(vectors))
	}
	if err := checkDimensions(h.dimensions, vectors...); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for i, key := range keys {
		if _, ok := h.live[key]; ok {
			return fmt.Errorf("key %d already indexed", key)
		}
		vec := make([]float32, h.dimensions)
		copy(vec, vectors[i])
		h.graph.Add(hnsw.MakeNode(key, vec))
		h.live[key] = struct{}{}
	}
	return nil
}

// Search returns up to k live vectors closest to query.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if err := checkDimensions(h.dimensions, query); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrClosed
	}
	if k <= 0 || len(h.live) == 0 {
		return nil, nil
	}
	want := k + h.graph.Len() - len(h.live)
	if n := h.graph.Len(); want > n {
		want = n
	}
	nodes := h.graph.Search(query, want)
	results := make([]*Result, 0, k)
	for _, node := range nodes {
		if _, ok := h.live[node.Key]; !ok {
			continue
		}
		results = append(results, &Result{
			Key:   node.Key,
			Score: 1 - float64(h.graph.Distance(query, node.Value)),
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Remove drops keys from the live set.
func (h *HNSWIndex) Remove(ctx context.Context, keys []uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for _, key := range keys {
		delete(h.live, key)
	}
	h.compactIfNeeded()
	return nil
}

// Compact rebuilds the graph from the live nodes, dropping every orphan.
func (h *HNSWIndex) Compact() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.compact()
}

func (h *HNSWIndex) compactIfNeeded() {
	if h.graph.Len()-len(h.live) > len(h.live) {
		h.compact()
	}
}

// compact requires h.mu held for writing.
func (h *HNSWIndex) compact() {
	keys := make([]uint64, 0, len(h.live))
	for key := range h.live {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	graph := h.newGraph()
	for _, key := range keys {
		vec, ok := h.graph.Lookup(key)
		if !ok {
			delete(h.live, key)
			continue
		}
		graph.Add(hnsw.MakeNode(key, vec))
	}
	h.graph = graph
}

// Save exports the graph to path and the live key set to path+".meta".
func (h *HNSWIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	meta := hnswMetadata{Dimensions: h.dimensions, Nodes: h.graph.Len(), Live: make([]uint64, 0, len(h.live))}
	for key := range h.live {
		meta.Live = append(meta.Live, key)
	}
	var graph bytes.Buffer
	if meta.Nodes > 0 {
		if err := h.graph.Export(&graph); err != nil {
			return fmt.Errorf("export graph: %w", err)
		}
	}
	if err := renameio.WriteFile(path, graph.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := renameio.WriteFile(path+".meta", buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Load replaces the index with the graph saved at path. A missing file leaves
// the index empty.
func (h *HNSWIndex) Load(path string) error {
	metaFile, err := os.Open(path + ".meta")
	if errors.Is(err, os.ErrNotExist) {
		h.Reset()
		return nil
	}
	if err != nil {
		return fmt.Errorf("open metadata: %w", err)
	}
	defer metaFile.Close()
	var meta hnswMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	if meta.Dimensions != h.dimensions {
		return DimensionError{Expected: h.dimensions, Got: meta.Dimensions}
	}

	graph := h.newGraph()
	if meta.Nodes > 0 {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open graph: %w", err)
		}
		defer f.Close()
		// Import needs an io.ByteReader.
		if err := graph.Import(bufio.NewReader(f)); err != nil {
			return fmt.Errorf("import graph: %w", err)
		}
	}
	live := make(map[uint64]struct{}, len(meta.Live))
	for _, key := range meta.Live {
		live[key] = struct{}{}
	}

	h.mu.Lock()
	h.graph, h.live = graph, live
	h.compactIfNeeded()
	h.mu.Unlock()
	return nil
}

// Reset empties the index.
func (h *HNSWIndex) Reset() {
	h.mu.Lock()
	h.graph = h.newGraph()
	h.live = make(map[uint64]struct{})
	h.mu.Unlock()
}

// Size returns the number of live vectors.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.live)
}

// Orphans returns the number of removed nodes still held by the graph.
func (h *HNSWIndex) Orphans() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph.Len() - len(h.live)
}

// Close releases the graph. Later calls return ErrClosed.
func (h *HNSWIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = h.newGraph()
	h.live = nil
	h.closed = true
	return nil
}
