package search

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/hyperjump/kensaku/internal/keyword"
	"github.com/hyperjump/kensaku/internal/models"
)

const keywordIndexFile = "keyword_index.json"

// KeywordSearch ranks chunks with the bleve full-text index.
type KeywordSearch struct {
	index *keyword.Index
}

// NewKeywordSearch creates an empty keyword engine.
func NewKeywordSearch(opts keyword.Options) (*KeywordSearch, error) {
	idx, err := keyword.NewIndex(opts)
	if err != nil {
		return nil, err
	}
	return &KeywordSearch{index: idx}, nil
}

func (s *KeywordSearch) Name() string { return "keyword" }

func (s *KeywordSearch) AddChunks(ctx context.Context, chunks map[int]models.Chunk) error {
	docs := make(map[string]keyword.Document, len(chunks))
	for id, c := range chunks {
		docs[strconv.Itoa(id)] = keyword.NewDocument(c.Content, c.IsMarkdown)
	}
	if err := s.index.IndexBatch(docs); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	return nil
}

func (s *KeywordSearch) RemoveChunks(ctx context.Context, ids []int) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = strconv.Itoa(id)
	}
	if err := s.index.Delete(keys); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func (s *KeywordSearch) Query(ctx context.Context, text string, k int) ([]models.ScoreEntry, error) {
	hits, err := s.index.Search(ctx, text, k)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	entries := make([]models.ScoreEntry, 0, len(hits))
	for _, h := range hits {
		id, err := strconv.Atoi(h.ID)
		if err != nil {
			return nil, fmt.Errorf("keyword index holds non-chunk id %q", h.ID)
		}
		entries = append(entries, models.ScoreEntry{Score: h.Score, ChunkID: id})
	}
	return entries, nil
}

func (s *KeywordSearch) Save(dir string) error {
	return s.index.Save(filepath.Join(dir, keywordIndexFile))
}

func (s *KeywordSearch) Load(dir string) error {
	return s.index.Load(filepath.Join(dir, keywordIndexFile))
}

func (s *KeywordSearch) Reset() error { return s.index.Reset() }

func (s *KeywordSearch) Close() error { return s.index.Close() }
