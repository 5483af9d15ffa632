package vector

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

func unit(angle float64) []float32 {
	return []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
}

func TestHNSWIndex_SearchAndLazyRemove(t *testing.T) {
	idx, err := NewHNSWIndex(2, HNSWConfig{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	keys := []uint64{0, 1, 2, 3}
	vecs := [][]float32{unit(0), unit(0.1), unit(1.0), unit(1.5)}
	if err := idx.Add(ctx, keys, vecs); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search(ctx, unit(0), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Key != 0 || results[1].Key != 1 {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].Score < 0.999 {
		t.Errorf("exact match score = %f", results[0].Score)
	}

	if err := idx.Remove(ctx, []uint64{0}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 || idx.Orphans() != 1 {
		t.Errorf("Size=%d Orphans=%d", idx.Size(), idx.Orphans())
	}
	results, _ = idx.Search(ctx, unit(0), 2)
	if len(results) != 2 || results[0].Key != 1 || results[1].Key != 2 {
		t.Fatalf("removed key leaked into results: %+v", results)
	}
}

func TestHNSWIndex_AllRemoved(t *testing.T) {
	idx, _ := NewHNSWIndex(2, HNSWConfig{})
	ctx := context.Background()
	_ = idx.Add(ctx, []uint64{5}, [][]float32{unit(0)})
	_ = idx.Remove(ctx, []uint64{5})
	results, err := idx.Search(ctx, unit(0), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %+v", results)
	}
}

func TestHNSWIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector_index.bin")
	ctx := context.Background()
	idx, _ := NewHNSWIndex(2, HNSWConfig{M: 8})
	_ = idx.Add(ctx, []uint64{10, 11, 12}, [][]float32{unit(0), unit(0.7), unit(1.4)})
	_ = idx.Remove(ctx, []uint64{11})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewHNSWIndex(2, HNSWConfig{M: 8})
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("Size=%d", loaded.Size())
	}
	results, _ := loaded.Search(ctx, unit(0.7), 3)
	if len(results) != 2 {
		t.Fatalf("unexpected results %+v", results)
	}
	for _, r := range results {
		if r.Key == 11 {
			t.Error("removed key survived save/load")
		}
	}
}

func TestHNSWIndex_SaveLoadEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector_index.bin")
	idx, _ := NewHNSWIndex(4, HNSWConfig{})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, _ := NewHNSWIndex(4, HNSWConfig{})
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 0 {
		t.Errorf("Size=%d", loaded.Size())
	}
}

func TestHNSWIndex_CompactsOrphans(t *testing.T) {
	idx, _ := NewHNSWIndex(2, HNSWConfig{})
	ctx := context.Background()
	var next uint64
	var current []uint64
	for round := 0; round < 50; round++ {
		keys := make([]uint64, 20)
		vecs := make([][]float32, 20)
		for i := range keys {
			keys[i] = next
			vecs[i] = unit(float64(next) * 0.001)
			next++
		}
		if err := idx.Add(ctx, keys, vecs); err != nil {
			t.Fatal(err)
		}
		if err := idx.Remove(ctx, current); err != nil {
			t.Fatal(err)
		}
		current = keys
		if idx.Orphans() > idx.Size() {
			t.Fatalf("round %d: Orphans=%d exceeds Size=%d", round, idx.Orphans(), idx.Size())
		}
	}
	if idx.Size() != 20 {
		t.Fatalf("Size=%d", idx.Size())
	}

	path := filepath.Join(t.TempDir(), "vector_index.bin")
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, _ := NewHNSWIndex(2, HNSWConfig{})
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Orphans() > loaded.Size() {
		t.Errorf("after reload Orphans=%d Size=%d", loaded.Orphans(), loaded.Size())
	}
	results, err := loaded.Search(ctx, unit(1.0), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for _, r := range results {
		if r.Key < next-20 {
			t.Errorf("stale key %d returned", r.Key)
		}
	}
}

func TestHNSWIndex_Compact(t *testing.T) {
	idx, _ := NewHNSWIndex(2, HNSWConfig{})
	ctx := context.Background()
	_ = idx.Add(ctx, []uint64{1, 2, 3, 4}, [][]float32{unit(0), unit(0.3), unit(0.6), unit(0.9)})
	_ = idx.Remove(ctx, []uint64{2})
	if idx.Orphans() != 1 {
		t.Fatalf("Orphans=%d before Compact", idx.Orphans())
	}
	idx.Compact()
	if idx.Orphans() != 0 || idx.Size() != 3 {
		t.Fatalf("Orphans=%d Size=%d after Compact", idx.Orphans(), idx.Size())
	}
	results, _ := idx.Search(ctx, unit(0.3), 3)
	if len(results) != 3 {
		t.Fatalf("unexpected results %+v", results)
	}
	for _, r := range results {
		if r.Key == 2 {
			t.Error("removed key returned after Compact")
		}
	}
}
