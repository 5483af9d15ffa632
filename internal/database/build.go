package database

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/docstore"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/keyword"
	"github.com/hyperjump/kensaku/internal/rerank"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/tokens"
	"github.com/hyperjump/kensaku/internal/vector"
)

// FromConfig assembles the document store, embedder and engine stack
// described by cfg and opens the database in cfg.Storage.DataDir.
func FromConfig(cfg *config.Config, logger *zap.Logger) (*Database, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	counter, err := tokens.New(cfg.Tokenizer.Type, cfg.Tokenizer.Encoding)
	if err != nil {
		return nil, err
	}
	store, err := docstore.New(cfg.Corpus.Root,
		docstore.WithLogger(logger.Named("docstore")),
		docstore.WithIgnorePolicy(docstore.NewIgnorePolicy(cfg.Corpus.IgnoredFolders, cfg.Corpus.IgnoredExtensions)),
		docstore.WithBaseURL(cfg.Corpus.BaseURL),
		docstore.WithLinkResolution(cfg.Corpus.ResolveLinksOrDefault()),
	)
	if err != nil {
		return nil, err
	}
	backend, err := storage.NewBackend(cfg.Storage.Backend)
	if err != nil {
		return nil, err
	}

	engine, emb, err := NewEngine(cfg, counter, store, logger)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithLogger(logger.Named("database")),
		WithBackend(backend),
		WithLimits(cfg.Search.DefaultK, cfg.Search.MaxK),
	}
	if cfg.Search.Rerank.Enabled {
		opts = append(opts, WithCandidateFactor(cfg.Search.Rerank.CandidateFactor))
	}
	if emb != nil {
		opts = append(opts, withCloser(emb.Close))
	}
	db, err := Open(cfg.Storage.DataDir, store, engine, counter, cfg.Tokenizer.MaxTokensPerChunk, opts...)
	if err != nil {
		closeErr := engine.Close()
		if emb != nil {
			closeErr = errors.Join(closeErr, emb.Close())
		}
		return nil, errors.Join(err, closeErr)
	}
	return db, nil
}

// NewEngine builds the engine selected by cfg.Search. The returned embedder
// is nil when no component needs one; the caller closes it after the engine.
func NewEngine(cfg *config.Config, counter tokens.Counter, chunks search.ChunkSource, logger *zap.Logger) (search.Engine, embedding.Embedder, error) {
	needsEmbedder := cfg.Search.Engine != "keyword" ||
		(cfg.Search.Rerank.Enabled && cfg.Search.Rerank.Type == "embedding")
	var emb embedding.Embedder
	if needsEmbedder {
		var err error
		emb, err = embedding.New(embedding.Options{
			Type:          cfg.Embedding.Type,
			ModelPath:     cfg.Embedding.ModelPath,
			Dimensions:    cfg.Embedding.Dimensions,
			MaxTokens:     cfg.Embedding.MaxTokens,
			CacheSize:     cfg.Embedding.CacheSize,
			QueryPrefix:   cfg.Embedding.QueryPrefix,
			PassagePrefix: cfg.Embedding.PassagePrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create embedder: %w", err)
		}
	}
	fail := func(err error) (search.Engine, embedding.Embedder, error) {
		if emb != nil {
			_ = emb.Close()
		}
		return nil, nil, err
	}

	newVector := func() (search.Engine, error) {
		idx, err := vector.NewIndex(vector.Config{
			Type:       cfg.Vector.IndexType,
			Dimensions: emb.Dimensions(),
			HNSW:       vector.HNSWConfig{M: cfg.Vector.M, EfSearch: cfg.Vector.EfSearch},
		})
		if err != nil {
			return nil, fmt.Errorf("create vector index: %w", err)
		}
		return search.NewVectorSearch(emb, idx, counter,
			search.WithMaxPool(cfg.Search.MaxPool),
			search.WithVectorLogger(logger.Named("vector")),
		), nil
	}
	newKeyword := func() (search.Engine, error) {
		return search.NewKeywordSearch(keyword.Options{
			HeadlineBoost: cfg.Keyword.HeadlineBoost,
			PhraseBoost:   cfg.Keyword.PhraseBoost,
			Fuzzy:         cfg.Keyword.Fuzzy,
			Fuzziness:     cfg.Keyword.Fuzziness,
		})
	}

	var engine search.Engine
	switch cfg.Search.Engine {
	case "vector":
		e, err := newVector()
		if err != nil {
			return fail(err)
		}
		engine = e
	case "keyword":
		e, err := newKeyword()
		if err != nil {
			return fail(err)
		}
		engine = e
	case "", "hybrid":
		fusion, err := search.NewFusion(cfg.Search.Fusion, cfg.Search.RankingConstant)
		if err != nil {
			return fail(err)
		}
		merge, err := search.NewMerge(cfg.Search.Merge)
		if err != nil {
			return fail(err)
		}
		v, err := newVector()
		if err != nil {
			return fail(err)
		}
		k, err := newKeyword()
		if err != nil {
			_ = v.Close()
			return fail(err)
		}
		engine = search.NewHybridSearch(v, k, fusion, merge)
	default:
		return fail(fmt.Errorf("unknown search engine %q", cfg.Search.Engine))
	}

	if cfg.Search.Rerank.Enabled {
		r, err := rerank.New(cfg.Search.Rerank.Type, emb)
		if err != nil {
			_ = engine.Close()
			return fail(err)
		}
		engine = search.NewRerankSearch(engine, chunks, r)
	}
	return engine, emb, nil
}
