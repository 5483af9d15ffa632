package search

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kensaku/internal/models"
)

// HybridSearch queries two engines in parallel, rescales each result list
// with a fusion strategy and merges the lists.
type HybridSearch struct {
	first, second Engine
	fusion        Fusion
	merge         MergeFunc
}

// NewHybridSearch combines first and second. A nil merge defaults to Sum.
func NewHybridSearch(first, second Engine, fusion Fusion, merge MergeFunc) *HybridSearch {
	if merge == nil {
		merge = Sum
	}
	return &HybridSearch{first: first, second: second, fusion: fusion, merge: merge}
}

func (h *HybridSearch) Name() string {
	return fmt.Sprintf("hybrid(%s+%s,%s)", h.first.Name(), h.second.Name(), h.fusion.Name())
}

func (h *HybridSearch) AddChunks(ctx context.Context, chunks map[int]models.Chunk) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.first.AddChunks(ctx, chunks) })
	g.Go(func() error { return h.second.AddChunks(ctx, chunks) })
	return g.Wait()
}

func (h *HybridSearch) RemoveChunks(ctx context.Context, ids []int) error {
	return errors.Join(h.first.RemoveChunks(ctx, ids), h.second.RemoveChunks(ctx, ids))
}

// Query fuses the top k of each engine and returns the best k of the union.
func (h *HybridSearch) Query(ctx context.Context, text string, k int) ([]models.ScoreEntry, error) {
	var a, b []models.ScoreEntry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = h.fuse(gctx, h.first, text, k)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = h.fuse(gctx, h.second, text, k)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return truncate(Merge(h.merge, a, b), k), nil
}

func (h *HybridSearch) fuse(ctx context.Context, e Engine, text string, k int) ([]models.ScoreEntry, error) {
	entries, err := e.Query(ctx, text, k)
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", e.Name(), err)
	}
	fused, err := h.fusion.Fuse(entries, k)
	if err != nil {
		return nil, fmt.Errorf("%s results: %w", e.Name(), err)
	}
	return fused, nil
}

func (h *HybridSearch) Save(dir string) error {
	if err := h.first.Save(dir); err != nil {
		return err
	}
	return h.second.Save(dir)
}

func (h *HybridSearch) Load(dir string) error {
	if err := h.first.Load(dir); err != nil {
		return err
	}
	return h.second.Load(dir)
}

func (h *HybridSearch) Reset() error {
	return errors.Join(h.first.Reset(), h.second.Reset())
}

func (h *HybridSearch) Close() error {
	return errors.Join(h.first.Close(), h.second.Close())
}
