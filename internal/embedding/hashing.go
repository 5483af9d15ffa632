package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/hyperjump/kensaku/pkg/utils"
)

const (
	defaultHashingDimensions = 384
	defaultHashingMaxTokens  = 256
)

// HashingEmbedder maps text to a signed bag-of-words vector using the hashing
// trick. It needs no model, is deterministic, and texts sharing words have
// positive cosine similarity, which makes it the offline default.
type HashingEmbedder struct {
	dimensions int
	maxTokens  int
}

// NewHashingEmbedder returns a hashing embedder. Non-positive arguments select
// the defaults.
func NewHashingEmbedder(dimensions, maxTokens int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = defaultHashingDimensions
	}
	if maxTokens <= 0 {
		maxTokens = defaultHashingMaxTokens
	}
	return &HashingEmbedder{dimensions: dimensions, maxTokens: maxTokens}
}

// Embed returns the L2-normalized hashed term vector of text. Queries and
// passages share one space.
func (e *HashingEmbedder) Embed(ctx context.Context, text string, _ bool) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dimensions)
	for _, term := range Terms(text) {
		h := fnv.New64a()
		h.Write([]byte(term))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimensions))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	return embedEach(ctx, e, texts, isQuery)
}

func (e *HashingEmbedder) Dimensions() int { return e.dimensions }
func (e *HashingEmbedder) MaxTokens() int  { return e.maxTokens }
func (e *HashingEmbedder) Name() string    { return "hashing" }
func (e *HashingEmbedder) Close() error    { return nil }

// Terms lowercases text and splits it into runs of letters and digits. It
// returns nil when text has no such runs.
func Terms(text string) []string {
	terms := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(terms) == 0 {
		return nil
	}
	return terms
}
