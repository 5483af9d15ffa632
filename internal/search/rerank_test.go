package search

import (
	"context"
	"testing"

	"github.com/hyperjump/kensaku/internal/models"
)

func TestRerankSearch_Reorders(t *testing.T) {
	inner := &staticEngine{name: "keyword", results: entries(0.9, 1, 0.8, 2, 0.7, 3)}
	chunks := chunkMap{
		1: models.NewChunk("u1", "one", false),
		2: models.NewChunk("u2", "two", false),
		3: models.NewChunk("u3", "three", false),
	}
	r := NewRerankSearch(inner, chunks, scoreByContent{"one": 0.1, "two": 0.5, "three": 0.9})

	got, err := r.Query(context.Background(), "q", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ChunkID != 2 || got[1].ChunkID != 1 {
		t.Errorf("got %v", got)
	}

	got, _ = r.Query(context.Background(), "q", 3)
	if got[0].ChunkID != 3 || !approx(got[0].Score, 0.9) {
		t.Errorf("got %v", got)
	}
}

func TestRerankSearch_DuplicateIDsKeepMax(t *testing.T) {
	inner := &staticEngine{name: "x", results: entries(0.9, 5, 0.4, 5, 0.3, 6)}
	chunks := chunkMap{
		5: models.NewChunk("u", "five", false),
		6: models.NewChunk("u", "six", false),
	}
	r := NewRerankSearch(inner, chunks, scoreByContent{"five": 0.9, "six": 0.2})
	got, err := r.Query(context.Background(), "q", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ChunkID != 5 || !approx(got[0].Score, 0.9) {
		t.Errorf("got %v", got)
	}
}

func TestRerankSearch_SkipsUnresolvedChunks(t *testing.T) {
	inner := &staticEngine{name: "x", results: entries(0.9, 1, 0.8, 2)}
	r := NewRerankSearch(inner, chunkMap{2: models.NewChunk("u", "two", false)}, scoreByContent{"two": 0.4})
	got, err := r.Query(context.Background(), "q", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ChunkID != 2 {
		t.Errorf("got %v", got)
	}
}
