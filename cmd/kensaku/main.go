// Package main is the Kensaku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/cli"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/database"
	"github.com/hyperjump/kensaku/internal/docstore"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/server"
	"github.com/hyperjump/kensaku/internal/watcher"
	"github.com/hyperjump/kensaku/pkg/utils"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "update":
		runUpdate(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	case "serve", "server":
		runServe(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("kensaku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Kensaku indexes a directory of documents and answers relevance queries.

Usage:
  kensaku update [-config path] [-server url]            sync the index with the corpus
  kensaku query  [-k n] [-format text|json|markdown] <text>
  kensaku serve  [-config path] [-watch]                  run the HTTP API
  kensaku watch  [-config path]                           update whenever the corpus changes
  kensaku status [-format text|json] [-server url]
  kensaku version

The config file defaults to ./config.yaml or $KENSAKU_CONFIG.
`)
}

// commonFlags registers the flags every subcommand shares.
type commonFlags struct {
	config *string
	debug  *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config: fs.String("config", "", "config file path (default $KENSAKU_CONFIG or config.yaml)"),
		debug:  fs.Bool("debug", false, "enable debug logging"),
	}
}

// setup loads the config and builds the logger.
func setup(c commonFlags) (*config.Config, *zap.Logger) {
	path := config.Path(*c.config)
	cfg, err := config.Load(path)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *c.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", path),
		zap.String("corpus", cfg.Corpus.Root),
		zap.String("data_dir", cfg.Storage.DataDir),
	)
	return cfg, logger
}

func openDatabase(cfg *config.Config, logger *zap.Logger) *database.Database {
	db, err := database.FromConfig(cfg, logger)
	if err != nil {
		fail("Failed to open index: %v", err)
	}
	return db
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. The flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fail("%v", err)
	}
	return format
}

func runUpdate(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	common := addCommonFlags(fs)
	serverURL := fs.String("server", "", "server URL (empty = update the local index)")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(args)
	format := parseFormat(*outputFormat)

	var resp models.UpdateResponse
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/v1/update", nil, &resp); err != nil {
			fail("Update failed: %v", err)
		}
	} else {
		cfg, logger := setup(common)
		defer logger.Sync()
		db := openDatabase(cfg, logger)
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		r, err := db.Update(ctx)
		if err != nil {
			fail("Update failed: %v", err)
		}
		resp = *r
	}
	if err := cli.WriteUpdate(os.Stdout, &resp, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	common := addCommonFlags(fs)
	k := fs.Int("k", 0, "number of chunks to return (default from config)")
	serverURL := fs.String("server", "", "server URL (empty = query the local index)")
	outputFormat := fs.String("format", "text", "output format: text, json or markdown")
	_ = fs.Parse(argsReorder(args))
	format := parseFormat(*outputFormat)

	req := models.QueryRequest{Query: buildQuery(fs.Args()), K: *k}
	if req.Query == "" {
		fmt.Fprintf(os.Stderr, "Usage: kensaku query [flags] <text>\n\n")
		fs.PrintDefaults()
		os.Exit(1)
	}

	var resp models.QueryResponse
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/v1/query", req, &resp); err != nil {
			fail("Query failed: %v", err)
		}
	} else {
		cfg, logger := setup(common)
		defer logger.Sync()
		db := openDatabase(cfg, logger)
		defer db.Close()
		if st, err := db.Status(); err == nil && st.Snapshot == "" {
			fmt.Fprintln(os.Stderr, "Index is empty; run `kensaku update` first.")
		}
		r, err := db.Query(context.Background(), req)
		if err != nil {
			fail("Query failed: %v", err)
		}
		resp = *r
	}
	if err := cli.WriteQueryResults(os.Stdout, &resp, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	common := addCommonFlags(fs)
	serverURL := fs.String("server", "", "server URL (empty = read the local index)")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(args)
	format := parseFormat(*outputFormat)

	var status database.Status
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
			fail("Status failed: %v", err)
		}
	} else {
		cfg, logger := setup(common)
		defer logger.Sync()
		db := openDatabase(cfg, logger)
		defer db.Close()
		st, err := db.Status()
		if err != nil {
			fail("Status failed: %v", err)
		}
		status = *st
	}
	if err := cli.WriteStatus(os.Stdout, &status, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	common := addCommonFlags(fs)
	watch := fs.Bool("watch", false, "update the index when the corpus changes (overrides watch.enabled)")
	initial := fs.Bool("update", true, "update the index before serving")
	_ = fs.Parse(args)

	cfg, logger := setup(common)
	defer logger.Sync()
	db := openDatabase(cfg, logger)
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *initial {
		updateAndLog(ctx, db, logger)
	}
	if cfg.Watch.Enabled || *watch {
		w := newWatcher(cfg, db, logger)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(db, &cfg.Server, logger)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Stop(shutdownCtx)
	}
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)

	cfg, logger := setup(common)
	defer logger.Sync()
	db := openDatabase(cfg, logger)
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	updateAndLog(ctx, db, logger)
	w := newWatcher(cfg, db, logger)
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer w.Stop()
	logger.Info("watching corpus", zap.String("root", w.Root()))
	<-ctx.Done()
	logger.Info("Shutting down...")
}

func newWatcher(cfg *config.Config, db *database.Database, logger *zap.Logger) *watcher.Watcher {
	return watcher.New(cfg.Corpus.Root,
		func(ctx context.Context, paths []string) {
			logger.Debug("corpus changed", zap.Strings("paths", paths))
			updateAndLog(ctx, db, logger)
		},
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond),
		watcher.WithIgnorePolicy(docstore.NewIgnorePolicy(cfg.Corpus.IgnoredFolders, cfg.Corpus.IgnoredExtensions)),
		watcher.WithLogger(logger.Named("watcher")),
	)
}

// updateAndLog runs an update where failure is not fatal: the last
// committed snapshot keeps serving.
func updateAndLog(ctx context.Context, db *database.Database, logger *zap.Logger) {
	resp, err := db.Update(ctx)
	if err != nil {
		logger.Warn("index update failed", zap.Error(err))
		return
	}
	logger.Info("index updated",
		zap.Int("files", resp.Files),
		zap.Int("chunks", resp.Chunks),
		zap.Int("added", resp.Added),
		zap.Int("removed", resp.Removed),
	)
}

func postJSON(url string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
