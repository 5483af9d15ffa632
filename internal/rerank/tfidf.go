package rerank

import (
	"context"
	"math"

	"github.com/hyperjump/kensaku/internal/embedding"
)

// TFIDF scores each passage by the cosine between TF-IDF vectors of the
// query and the passage. Document frequencies are taken over the candidate
// passages themselves, so terms shared by every candidate carry little weight.
type TFIDF struct{}

func (TFIDF) Name() string { return "tfidf" }

// Scores returns the cosine similarity of query and each passage in [0, 1].
func (TFIDF) Scores(ctx context.Context, query string, passages []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tfs := make([]map[string]float64, len(passages))
	df := make(map[string]int)
	for i, p := range passages {
		tfs[i] = termFrequencies(embedding.Terms(p))
		for term := range tfs[i] {
			df[term]++
		}
	}
	n := float64(len(passages))
	idf := func(term string) float64 {
		return math.Log(1 + n/float64(df[term]))
	}

	q := termFrequencies(embedding.Terms(query))
	for term := range q {
		if df[term] == 0 {
			delete(q, term)
			continue
		}
		q[term] *= idf(term)
	}
	qNorm := norm(q)

	scores := make([]float64, len(passages))
	if qNorm == 0 {
		return scores, nil
	}
	for i, tf := range tfs {
		var dot, sq float64
		for term, f := range tf {
			w := f * idf(term)
			sq += w * w
			dot += w * q[term]
		}
		if sq > 0 {
			scores[i] = dot / (qNorm * math.Sqrt(sq))
		}
	}
	return scores, nil
}

func termFrequencies(terms []string) map[string]float64 {
	tf := make(map[string]float64, len(terms))
	for _, t := range terms {
		tf[t]++
	}
	return tf
}

func norm(v map[string]float64) float64 {
	var sq float64
	for _, w := range v {
		sq += w * w
	}
	return math.Sqrt(sq)
}
