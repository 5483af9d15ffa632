package vector

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/google/renameio"
)

// MemoryIndex is an exact index using brute-force inner product search.
// Suitable for tests and corpora of up to a few ten thousand vectors.
type MemoryIndex struct {
	dimensions int
	keys       []uint64
	vectors    [][]float32
	closed     bool
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// Add appends vectors under the given keys.
func (m *MemoryIndex) Add(ctx context.Context, keys []uint64, vectors [][]float32) error {
	if len(keys) != len(vectors) {
		return fmt.Errorf("keys and vectors length mismatch: %d vs %d", len(keys), len(vectors))
	}
	if err := checkDimensions(m.dimensions, vectors...); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for i, key := range keys {
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		m.keys = append(m.keys, key)
		m.vectors = append(m.vectors, vec)
	}
	return nil
}

// Search returns the top-k vectors by inner product. Ties keep insertion order.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if err := checkDimensions(m.dimensions, query); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if k <= 0 || len(m.keys) == 0 {
		return nil, nil
	}
	results := make([]*Result, len(m.keys))
	for i, vec := range m.vectors {
		results[i] = &Result{Key: m.keys[i], Score: InnerProduct(query, vec)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Remove drops the vectors stored under keys. Unknown keys are ignored.
func (m *MemoryIndex) Remove(ctx context.Context, keys []uint64) error {
	drop := make(map[uint64]struct{}, len(keys))
	for _, key := range keys {
		drop[key] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	n := 0
	for i, key := range m.keys {
		if _, ok := drop[key]; ok {
			continue
		}
		m.keys[n] = key
		m.vectors[n] = m.vectors[i]
		n++
	}
	clear(m.vectors[n:])
	m.keys = m.keys[:n]
	m.vectors = m.vectors[:n]
	return nil
}

// Save writes the index to path atomically. Format: dimension (4), n (4),
// then per vector: key (8), vector (dimension*4 bytes), all little endian.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var buf bytes.Buffer
	buf.Grow(8 + len(m.keys)*(8+m.dimensions*4))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(m.dimensions))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(m.keys)))
	for i, key := range m.keys {
		_ = binary.Write(&buf, binary.LittleEndian, key)
		buf.Write(float32SliceToBytes(m.vectors[i]))
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write vector index: %w", err)
	}
	return nil
}

// Load replaces the index contents with the file at path. A missing file
// leaves the index empty.
func (m *MemoryIndex) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		m.Reset()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read vector index: %w", err)
	}
	r := bytes.NewReader(data)
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return DimensionError{Expected: m.dimensions, Got: int(dim)}
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	keys := make([]uint64, 0, n)
	vectors := make([][]float32, 0, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var key uint64
		if err := binary.Read(r, binary.LittleEndian, &key); err != nil {
			return fmt.Errorf("read key %d: %w", i, err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector %d: %w", i, err)
		}
		keys = append(keys, key)
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	m.mu.Lock()
	m.keys, m.vectors = keys, vectors
	m.mu.Unlock()
	return nil
}

// Reset empties the index.
func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	m.keys, m.vectors = nil, nil
	m.mu.Unlock()
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// Close releases the vectors. Later calls return ErrClosed.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys, m.vectors = nil, nil
	m.closed = true
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
