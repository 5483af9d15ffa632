package search

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hyperjump/kensaku/internal/models"
)

var (
	// ErrIncreasingOrder is returned when a score list that must be
	// descending is sorted ascending, usually an inverted sort.
	ErrIncreasingOrder = errors.New("score list is in increasing order")
	// ErrUnordered is returned when a score list is not sorted at all.
	ErrUnordered = errors.New("score list is not ordered")
)

// DefaultRankingConstant is the RRF smoothing constant.
const DefaultRankingConstant = 60

// CheckDescending verifies entries are sorted by non-increasing score.
func CheckDescending(entries []models.ScoreEntry) error {
	var up, down bool
	for i := 1; i < len(entries); i++ {
		switch {
		case entries[i].Score > entries[i-1].Score:
			up = true
		case entries[i].Score < entries[i-1].Score:
			down = true
		}
	}
	switch {
	case !up:
		return nil
	case !down:
		return ErrIncreasingOrder
	default:
		return ErrUnordered
	}
}

// Fusion rescales one engine's descending score list onto a scale that can
// be combined with another engine's. Fuse rejects unordered input and keeps
// the order of its output.
type Fusion interface {
	Name() string
	Fuse(entries []models.ScoreEntry, k int) ([]models.ScoreEntry, error)
}

// NewFusion returns the fusion strategy named by kind: "rrf", "relative" or
// "distribution". rankingConstant applies to rrf; non-positive selects the
// default.
func NewFusion(kind string, rankingConstant float64) (Fusion, error) {
	switch kind {
	case "", "rrf":
		if rankingConstant <= 0 {
			rankingConstant = DefaultRankingConstant
		}
		return ReciprocalRank{Constant: rankingConstant}, nil
	case "relative":
		return RelativeScore{}, nil
	case "distribution":
		return DistributionScore{}, nil
	default:
		return nil, fmt.Errorf("unknown fusion %q", kind)
	}
}

// ReciprocalRank replaces the score at 1-based rank r with 1/(Constant+r).
type ReciprocalRank struct {
	Constant float64
}

func (ReciprocalRank) Name() string { return "rrf" }

func (f ReciprocalRank) Fuse(entries []models.ScoreEntry, _ int) ([]models.ScoreEntry, error) {
	if err := CheckDescending(entries); err != nil {
		return nil, fmt.Errorf("reciprocal rank fusion: %w", err)
	}
	out := make([]models.ScoreEntry, len(entries))
	for i, e := range entries {
		out[i] = models.ScoreEntry{Score: 1 / (f.Constant + float64(i+1)), ChunkID: e.ChunkID}
	}
	return out, nil
}

// RelativeScore maps scores linearly so the best of the top k entries is 1
// and the worst of them is 0. Entries past k may fall below 0.
type RelativeScore struct{}

func (RelativeScore) Name() string { return "relative" }

func (RelativeScore) Fuse(entries []models.ScoreEntry, k int) ([]models.ScoreEntry, error) {
	if err := CheckDescending(entries); err != nil {
		return nil, fmt.Errorf("relative score fusion: %w", err)
	}
	top := head(entries, k)
	if len(top) == 0 {
		return nil, nil
	}
	return rescale(entries, top[len(top)-1].Score, top[0].Score), nil
}

// DistributionScore maps mean-3σ to 0 and mean+3σ to 1, with mean and σ
// taken over the top k entries.
type DistributionScore struct{}

func (DistributionScore) Name() string { return "distribution" }

func (DistributionScore) Fuse(entries []models.ScoreEntry, k int) ([]models.ScoreEntry, error) {
	if err := CheckDescending(entries); err != nil {
		return nil, fmt.Errorf("distribution score fusion: %w", err)
	}
	top := head(entries, k)
	if len(top) == 0 {
		return nil, nil
	}
	var mean float64
	for _, e := range top {
		mean += e.Score
	}
	mean /= float64(len(top))
	var variance float64
	for _, e := range top {
		d := e.Score - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(top)))
	return rescale(entries, mean-3*std, mean+3*std), nil
}

func head(entries []models.ScoreEntry, k int) []models.ScoreEntry {
	if k > 0 && k < len(entries) {
		return entries[:k]
	}
	return entries
}

// rescale maps [lo, hi] onto [0, 1]. A degenerate range maps every entry to 1.
func rescale(entries []models.ScoreEntry, lo, hi float64) []models.ScoreEntry {
	out := make([]models.ScoreEntry, len(entries))
	for i, e := range entries {
		score := 1.0
		if hi > lo {
			score = (e.Score - lo) / (hi - lo)
		}
		out[i] = models.ScoreEntry{Score: score, ChunkID: e.ChunkID}
	}
	return out
}

// MergeFunc combines two scores for the same chunk id.
type MergeFunc func(a, b float64) float64

// Max keeps the larger score. Use it for raw scores from one engine.
func Max(a, b float64) float64 { return math.Max(a, b) }

// Sum adds scores. Use it only for fused scores on a common scale.
func Sum(a, b float64) float64 { return a + b }

// NewMerge returns the merge operator named by kind: "sum" or "max".
func NewMerge(kind string) (MergeFunc, error) {
	switch kind {
	case "", "sum":
		return Sum, nil
	case "max":
		return Max, nil
	default:
		return nil, fmt.Errorf("unknown merge operator %q", kind)
	}
}

// Merge unions the lists, combining entries that share a chunk id with
// merge, and returns them sorted by descending score, ties by ascending id.
func Merge(merge MergeFunc, lists ...[]models.ScoreEntry) []models.ScoreEntry {
	scores := make(map[int]float64)
	for _, list := range lists {
		for _, e := range list {
			if prev, ok := scores[e.ChunkID]; ok {
				scores[e.ChunkID] = merge(prev, e.Score)
			} else {
				scores[e.ChunkID] = e.Score
			}
		}
	}
	out := make([]models.ScoreEntry, 0, len(scores))
	for id, score := range scores {
		out = append(out, models.ScoreEntry{Score: score, ChunkID: id})
	}
	SortEntries(out)
	return out
}

// SortEntries sorts by descending score, ties by ascending chunk id.
func SortEntries(entries []models.ScoreEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ChunkID < entries[j].ChunkID
	})
}

func truncate(entries []models.ScoreEntry, k int) []models.ScoreEntry {
	if k >= 0 && len(entries) > k {
		return entries[:k]
	}
	return entries
}
