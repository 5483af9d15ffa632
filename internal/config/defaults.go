package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Corpus.Root == "" {
		cfg.Corpus.Root = "./docs"
	}
	if cfg.Corpus.IgnoredFolders == nil {
		cfg.Corpus.IgnoredFolders = []string{"timeline", ".git"}
	}
	if cfg.Corpus.IgnoredExtensions == nil {
		cfg.Corpus.IgnoredExtensions = []string{".gif", ".png", ".jpg", ".jpeg", ".css", ".gitkeep", ".in", ".out", ".output"}
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "~/.kensaku/data"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "json"
	}
	if cfg.Tokenizer.Type == "" {
		cfg.Tokenizer.Type = "tiktoken"
	}
	if cfg.Tokenizer.Encoding == "" {
		cfg.Tokenizer.Encoding = "cl100k_base"
	}
	if cfg.Tokenizer.MaxTokensPerChunk == 0 {
		cfg.Tokenizer.MaxTokensPerChunk = 500
	}
	if cfg.Embedding.Type == "" {
		cfg.Embedding.Type = "hashing"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 4096
	}
	if cfg.Embedding.Type == "onnx" && cfg.Embedding.QueryPrefix == "" && cfg.Embedding.PassagePrefix == "" {
		cfg.Embedding.QueryPrefix = "query: "
		cfg.Embedding.PassagePrefix = "passage: "
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "hnsw"
	}
	if cfg.Vector.M == 0 {
		cfg.Vector.M = 16
	}
	if cfg.Vector.EfSearch == 0 {
		cfg.Vector.EfSearch = 64
	}
	if cfg.Keyword.HeadlineBoost == 0 {
		cfg.Keyword.HeadlineBoost = 5
	}
	if cfg.Keyword.PhraseBoost == 0 {
		cfg.Keyword.PhraseBoost = 1.5
	}
	if cfg.Keyword.Fuzziness == 0 {
		cfg.Keyword.Fuzziness = 1
	}
	if cfg.Search.Engine == "" {
		cfg.Search.Engine = "hybrid"
	}
	if cfg.Search.Fusion == "" {
		cfg.Search.Fusion = "rrf"
	}
	if cfg.Search.RankingConstant == 0 {
		cfg.Search.RankingConstant = 60
	}
	if cfg.Search.Merge == "" {
		cfg.Search.Merge = "sum"
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 8
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = 100
	}
	if cfg.Search.MaxPool == 0 {
		cfg.Search.MaxPool = 4096
	}
	if cfg.Search.Rerank.Type == "" {
		cfg.Search.Rerank.Type = "tfidf"
	}
	if cfg.Search.Rerank.CandidateFactor == 0 {
		cfg.Search.Rerank.CandidateFactor = 2
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 500
	}
}
