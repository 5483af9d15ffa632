package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
search:
  engine: keyword
  rerank:
    enabled: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Search.Engine != "keyword" || !cfg.Search.Rerank.Enabled {
		t.Errorf("unexpected search config: %+v", cfg.Search)
	}
	if cfg.Search.Rerank.CandidateFactor != 2 {
		t.Errorf("candidate factor = %d, want default 2", cfg.Search.Rerank.CandidateFactor)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
corpus:
  root: "./docs"
storage:
  data_dir: "data"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if want := filepath.Join(dir, "docs"); cfg.Corpus.Root != want {
		t.Errorf("corpus root = %s, want %s", cfg.Corpus.Root, want)
	}
	if want := filepath.Join(dir, "data"); cfg.Storage.DataDir != want {
		t.Errorf("data dir = %s, want %s", cfg.Storage.DataDir, want)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	path := writeConfig(t, "corpus:\n  root: ./docs\n")
	root := t.TempDir()
	data := t.TempDir()
	t.Setenv(EnvCorpusRoot, root)
	t.Setenv(EnvDataDir, data)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Corpus.Root != root || cfg.Storage.DataDir != data {
		t.Errorf("env overrides not applied: root=%s data=%s", cfg.Corpus.Root, cfg.Storage.DataDir)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestPath(t *testing.T) {
	t.Setenv(EnvConfig, "")
	if got := Path(""); got != DefaultPath {
		t.Errorf("Path() = %s, want %s", got, DefaultPath)
	}
	t.Setenv(EnvConfig, "/etc/kensaku.yaml")
	if got := Path(""); got != "/etc/kensaku.yaml" {
		t.Errorf("Path() = %s", got)
	}
	if got := Path("flag.yaml"); got != "flag.yaml" {
		t.Errorf("flag should win, got %s", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: %+v", cfg.Server)
	}
	if cfg.Tokenizer.MaxTokensPerChunk != 500 || cfg.Tokenizer.Encoding != "cl100k_base" {
		t.Errorf("default tokenizer: %+v", cfg.Tokenizer)
	}
	if cfg.Search.Engine != "hybrid" || cfg.Search.Fusion != "rrf" || cfg.Search.RankingConstant != 60 {
		t.Errorf("default search: %+v", cfg.Search)
	}
	if cfg.Embedding.QueryPrefix != "" {
		t.Errorf("hashing embedder should not get prefixes, got %q", cfg.Embedding.QueryPrefix)
	}
	if len(cfg.Corpus.IgnoredFolders) != 2 || len(cfg.Corpus.IgnoredExtensions) != 9 {
		t.Errorf("default ignore policy: %v %v", cfg.Corpus.IgnoredFolders, cfg.Corpus.IgnoredExtensions)
	}

	onnx := &Config{Embedding: EmbeddingConfig{Type: "onnx"}}
	ApplyDefaults(onnx)
	if onnx.Embedding.QueryPrefix != "query: " || onnx.Embedding.PassagePrefix != "passage: " {
		t.Errorf("onnx prefixes: %+v", onnx.Embedding)
	}
}

func TestCorpusConfig_ResolveLinksOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		c := &CorpusConfig{}
		if !c.ResolveLinksOrDefault() {
			t.Error("want true")
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		c := &CorpusConfig{ResolveLinks: &f}
		if c.ResolveLinksOrDefault() {
			t.Error("want false")
		}
	})
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{Server: ServerConfig{Host: "localhost", Port: 9090}}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
