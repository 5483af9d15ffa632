package keyword

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/renameio"
)

// Index is an in-memory Bleve index. Bleve's memory-only store cannot be
// serialized, so the index keeps its source documents and Save writes those;
// Load re-indexes them.
type Index struct {
	mu    sync.RWMutex
	opts  Options
	index bleve.Index
	docs  map[string]Document
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	// English analyzer: lowercase, stop words, possessives and stemming.
	text.Analyzer = en.AnalyzerName
	text.Store = false
	docMapping.AddFieldMappingsAt(fieldHeadlines, text)
	docMapping.AddFieldMappingsAt(fieldContent, text)
	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = en.AnalyzerName
	return im
}

// NewIndex creates an empty index.
func NewIndex(opts Options) (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &Index{opts: opts.withDefaults(), index: idx, docs: make(map[string]Document)}, nil
}

// IndexBatch adds or replaces documents in one batch.
func (b *Index) IndexBatch(docs map[string]Document) error {
	if len(docs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.index.NewBatch()
	for id, doc := range docs {
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("index %s: %w", id, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}
	for id, doc := range docs {
		b.docs[id] = doc
	}
	return nil
}

// Delete removes documents by id. Unknown ids are ignored.
func (b *Index) Delete(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("apply delete batch: %w", err)
	}
	for _, id := range ids {
		delete(b.docs, id)
	}
	return nil
}

// Search scores documents against query and returns up to limit results,
// best first, ties broken by id.
//
// Score = (headlineScore*HeadlineBoost + contentScore) * coverage² * phrase,
// where coverage is the fraction of analyzed query terms the document matches
// and phrase is PhraseBoost when the query occurs as a phrase.
func (b *Index) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	terms := b.analyze(query)
	if len(terms) == 0 {
		return nil, nil
	}
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	headScores, err := b.hits(ctx, b.termsQuery(terms, fieldHeadlines), reqSize)
	if err != nil {
		return nil, fmt.Errorf("headline search: %w", err)
	}
	contentScores, err := b.hits(ctx, b.termsQuery(terms, fieldContent), reqSize)
	if err != nil {
		return nil, fmt.Errorf("content search: %w", err)
	}

	coverage := make(map[string]int)
	if len(terms) > 1 {
		for _, term := range terms {
			matched, err := b.hits(ctx, b.termsQuery([]string{term}, ""), reqSize)
			if err != nil {
				return nil, fmt.Errorf("term search: %w", err)
			}
			for id := range matched {
				coverage[id]++
			}
		}
	}

	phrase := make(map[string]bool)
	if b.opts.PhraseBoost > 1 && len(terms) > 1 {
		for _, field := range []string{fieldHeadlines, fieldContent} {
			pq := bleve.NewMatchPhraseQuery(query)
			pq.SetField(field)
			matched, err := b.hits(ctx, pq, reqSize)
			if err != nil {
				return nil, fmt.Errorf("phrase search: %w", err)
			}
			for id := range matched {
				phrase[id] = true
			}
		}
	}

	ids := make(map[string]struct{}, len(headScores)+len(contentScores))
	for id := range headScores {
		ids[id] = struct{}{}
	}
	for id := range contentScores {
		ids[id] = struct{}{}
	}
	results := make([]*Result, 0, len(ids))
	for id := range ids {
		score := headScores[id]*b.opts.HeadlineBoost + contentScores[id]
		if len(terms) > 1 {
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			score *= c * c
		}
		if phrase[id] {
			score *= b.opts.PhraseBoost
		}
		results = append(results, &Result{ID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// analyze runs query through the index analyzer and returns its distinct
// terms in order.
func (b *Index) analyze(query string) []string {
	analyzer := b.index.Mapping().AnalyzerNamed(en.AnalyzerName)
	if analyzer == nil {
		return nil
	}
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range analyzer.Analyze([]byte(query)) {
		term := string(tok.Term)
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}
	return terms
}

// termsQuery ORs analyzed terms over field (all fields when empty).
func (b *Index) termsQuery(terms []string, field string) blevequery.Query {
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		if b.opts.Fuzzy {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetFuzziness(b.opts.Fuzziness)
			if field != "" {
				fq.SetField(field)
			}
			queries = append(queries, fq)
			continue
		}
		tq := bleve.NewTermQuery(term)
		if field != "" {
			tq.SetField(field)
		}
		queries = append(queries, tq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

func (b *Index) hits(ctx context.Context, q blevequery.Query, size int) (map[string]float64, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(res.Hits))
	for _, hit := range res.Hits {
		out[hit.ID] = hit.Score
	}
	return out, nil
}

// DocCount returns the number of indexed documents.
func (b *Index) DocCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docs)
}

// Save writes the indexed documents to path as JSON.
func (b *Index) Save(path string) error {
	b.mu.RLock()
	data, err := json.Marshal(b.docs)
	b.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode keyword documents: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write keyword documents: %w", err)
	}
	return nil
}

// Load replaces the index with the documents saved at path. A missing file
// leaves the index empty.
func (b *Index) Load(path string) error {
	docs := make(map[string]Document)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read keyword documents: %w", err)
	default:
		if err := json.Unmarshal(data, &docs); err != nil {
			return fmt.Errorf("decode keyword documents: %w", err)
		}
	}
	if err := b.Reset(); err != nil {
		return err
	}
	return b.IndexBatch(docs)
}

// Reset empties the index.
func (b *Index) Reset() error {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return fmt.Errorf("create bleve index: %w", err)
	}
	b.mu.Lock()
	old := b.index
	b.index = idx
	b.docs = make(map[string]Document)
	b.mu.Unlock()
	return old.Close()
}

// Close closes the Bleve index.
func (b *Index) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}
