// Package config provides configuration loading and structs for the Kensaku
// indexer and server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvConfig     = "KENSAKU_CONFIG"
	EnvCorpusRoot = "KENSAKU_CORPUS_ROOT"
	EnvDataDir    = "KENSAKU_DATA_DIR"
)

// DefaultPath is used when neither a flag nor EnvConfig names a config file.
const DefaultPath = "config.yaml"

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Storage   StorageConfig   `yaml:"storage"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Keyword   KeywordConfig   `yaml:"keyword"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CorpusConfig describes the document tree to index.
type CorpusConfig struct {
	Root              string   `yaml:"root"`
	BaseURL           string   `yaml:"base_url"`
	IgnoredFolders    []string `yaml:"ignored_folders"`
	IgnoredExtensions []string `yaml:"ignored_extensions"`
	ResolveLinks      *bool    `yaml:"resolve_links"`
}

// ResolveLinksOrDefault returns whether relative markdown links are
// rewritten; defaults to true when unset.
func (c *CorpusConfig) ResolveLinksOrDefault() bool {
	if c.ResolveLinks != nil {
		return *c.ResolveLinks
	}
	return true
}

// StorageConfig holds the snapshot directory and document store backend.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	Backend string `yaml:"backend"`
}

// TokenizerConfig selects the token counter used for chunk budgets.
type TokenizerConfig struct {
	Type              string `yaml:"type"`
	Encoding          string `yaml:"encoding"`
	MaxTokensPerChunk int    `yaml:"max_tokens_per_chunk"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Type          string `yaml:"type"`
	ModelPath     string `yaml:"model_path"`
	Dimensions    int    `yaml:"dimensions"`
	MaxTokens     int    `yaml:"max_tokens"`
	CacheSize     int    `yaml:"cache_size"`
	QueryPrefix   string `yaml:"query_prefix"`
	PassagePrefix string `yaml:"passage_prefix"`
}

// VectorConfig selects the nearest-neighbour index.
type VectorConfig struct {
	IndexType string `yaml:"index_type"`
	M         int    `yaml:"m"`
	EfSearch  int    `yaml:"ef_search"`
}

// KeywordConfig tunes keyword scoring.
type KeywordConfig struct {
	HeadlineBoost float64 `yaml:"headline_boost"`
	PhraseBoost   float64 `yaml:"phrase_boost"`
	Fuzzy         bool    `yaml:"fuzzy"`
	Fuzziness     int     `yaml:"fuzziness"`
}

// SearchConfig selects the engine composition and query limits.
type SearchConfig struct {
	Engine          string       `yaml:"engine"`
	Fusion          string       `yaml:"fusion"`
	RankingConstant float64      `yaml:"ranking_constant"`
	Merge           string       `yaml:"merge"`
	DefaultK        int          `yaml:"default_k"`
	MaxK            int          `yaml:"max_k"`
	MaxPool         int          `yaml:"max_pool"`
	Rerank          RerankConfig `yaml:"rerank"`
}

// RerankConfig enables reranking of the engine's candidates.
type RerankConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Type            string `yaml:"type"`
	CandidateFactor int    `yaml:"candidate_factor"`
}

// WatchConfig holds corpus watch settings.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// Path returns the config file to load: flagValue when set, then
// EnvConfig, then DefaultPath.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads an optional .env file, then parses the config file at path,
// applies defaults and environment overrides, and expands paths. A missing
// file at DefaultPath yields the defaults; any other missing file is an
// error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	configDir := "."
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		configDir = filepath.Dir(path)
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	cfg.Corpus.Root = expandPath(cfg.Corpus.Root, configDir)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	return &cfg, nil
}

// ApplyEnv overrides the corpus root and data directory from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvCorpusRoot); v != "" {
		cfg.Corpus.Root = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Storage.DataDir = v
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. "~/" is the home directory; other
// relative paths are relative to configDir.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
		return path
	}
	if abs, err := filepath.Abs(filepath.Join(configDir, path)); err == nil {
		return abs
	}
	return filepath.Join(configDir, path)
}
