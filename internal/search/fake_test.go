package search

import (
	"context"

	"github.com/hyperjump/kensaku/internal/models"
)

// staticEngine returns a fixed result list regardless of the query.
type staticEngine struct {
	name    string
	results []models.ScoreEntry
	err     error
	added   map[int]models.Chunk
	removed []int
	resets  int
}

func (s *staticEngine) Name() string { return s.name }

func (s *staticEngine) AddChunks(_ context.Context, chunks map[int]models.Chunk) error {
	if s.added == nil {
		s.added = make(map[int]models.Chunk)
	}
	for id, c := range chunks {
		s.added[id] = c
	}
	return nil
}

func (s *staticEngine) RemoveChunks(_ context.Context, ids []int) error {
	s.removed = append(s.removed, ids...)
	return nil
}

func (s *staticEngine) Query(_ context.Context, _ string, k int) ([]models.ScoreEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return truncate(s.results, k), nil
}

func (s *staticEngine) Save(string) error { return nil }
func (s *staticEngine) Load(string) error { return nil }
func (s *staticEngine) Reset() error      { s.resets++; return nil }
func (s *staticEngine) Close() error      { return nil }

// identity leaves scores unchanged.
type identity struct{}

func (identity) Name() string { return "identity" }

func (identity) Fuse(e []models.ScoreEntry, _ int) ([]models.ScoreEntry, error) {
	if err := CheckDescending(e); err != nil {
		return nil, err
	}
	return e, nil
}

type chunkMap map[int]models.Chunk

func (m chunkMap) Chunk(id int) (models.Chunk, bool) {
	c, ok := m[id]
	return c, ok
}

// scoreByContent scores passages from a fixed table.
type scoreByContent map[string]float64

func (scoreByContent) Name() string { return "table" }

func (s scoreByContent) Scores(_ context.Context, _ string, passages []string) ([]float64, error) {
	out := make([]float64, len(passages))
	for i, p := range passages {
		out[i] = s[p]
	}
	return out, nil
}
