package rerank

import (
	"context"
	"testing"

	"github.com/hyperjump/kensaku/internal/embedding"
)

func TestTFIDF_Scores(t *testing.T) {
	passages := []string{
		"The cat sat on the mat.",
		"Configuring the vector index for hybrid search.",
		"Hybrid search fuses keyword search and vector search.",
	}
	scores, err := TFIDF{}.Scores(context.Background(), "hybrid vector search", passages)
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 3 {
		t.Fatalf("got %d scores", len(scores))
	}
	if scores[0] != 0 {
		t.Errorf("unrelated passage scored %f", scores[0])
	}
	if scores[1] <= 0 || scores[2] <= 0 {
		t.Errorf("related passages should score above zero: %v", scores)
	}
	for i, s := range scores {
		if s < 0 || s > 1+1e-9 {
			t.Errorf("score[%d] = %f out of range", i, s)
		}
	}
}

func TestTFIDF_NoOverlap(t *testing.T) {
	scores, err := TFIDF{}.Scores(context.Background(), "zebra", []string{"alpha", "beta"})
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range scores {
		if s != 0 {
			t.Errorf("score[%d] = %f, want 0", i, s)
		}
	}
}

func TestEmbedding_Scores(t *testing.T) {
	r := NewEmbedding(embedding.NewHashingEmbedder(128, 64))
	scores, err := r.Scores(context.Background(), "apple pie recipe", []string{
		"an apple pie recipe with cinnamon",
		"tax forms for small businesses",
	})
	if err != nil {
		t.Fatal(err)
	}
	if scores[0] <= scores[1] {
		t.Errorf("expected the matching passage first: %v", scores)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		kind    string
		emb     embedding.Embedder
		want    string
		wantErr bool
	}{
		{"", nil, "tfidf", false},
		{"tfidf", nil, "tfidf", false},
		{"embedding", embedding.NewHashingEmbedder(8, 8), "embedding", false},
		{"embedding", nil, "", true},
		{"cross-encoder", nil, "", true},
	}
	for _, tt := range tests {
		r, err := New(tt.kind, tt.emb)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q): expected error", tt.kind)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%q): %v", tt.kind, err)
		}
		if r.Name() != tt.want {
			t.Errorf("New(%q).Name() = %q", tt.kind, r.Name())
		}
	}
}
