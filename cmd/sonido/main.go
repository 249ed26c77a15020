// Command sonido analyses audio files and compares them by pitch content.
//
//	sonido [-config file] [-cache db] [-log-level lvl] analyze <file>
//	sonido [-config file] [-cache db] [-log-level lvl] compare <a> <b>
//	sonido -cache db history
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/RyanBlaney/sonido-studio/analysis"
	"github.com/RyanBlaney/sonido-studio/audioerr"
	"github.com/RyanBlaney/sonido-studio/config"
	"github.com/RyanBlaney/sonido-studio/logging"
	"github.com/RyanBlaney/sonido-studio/resultcache"
	"github.com/RyanBlaney/sonido-studio/transcode"
)

type options struct {
	configPath string
	cachePath  string
	logLevel   string
	noColor    bool
	limit      int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	red := color.New(color.FgRed)

	var opts options
	fs := flag.NewFlagSet("sonido", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&opts.cachePath, "cache", "", "SQLite file caching analyses by content hash")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error (overrides config and LOG_LEVEL)")
	fs.BoolVar(&opts.noColor, "no-color", false, "disable coloured output")
	fs.IntVar(&opts.limit, "limit", 20, "number of entries shown by history")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: sonido [flags] analyze <file> | compare <a> <b> | history")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if opts.noColor {
		red.DisableColor()
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		red.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	logger, err := newLogger(cfg.Logging, opts.noColor, stderr)
	if err != nil {
		red.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	logging.SetGlobalLogger(logger)
	logging.Debug("Configuration loaded", logging.Fields{
		"config":      opts.configPath,
		"cache":       opts.cachePath,
		"window_size": cfg.Analysis.WindowSize,
		"hop_size":    cfg.Analysis.HopSize,
	})

	cmd := fs.Args()
	if len(cmd) == 0 {
		fs.Usage()
		return 2
	}

	var cache *resultcache.Cache
	if opts.cachePath != "" {
		cache, err = resultcache.Open(opts.cachePath)
		if err != nil {
			red.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		defer cache.Close()
	}

	engine, err := analysis.NewEngine(cfg, analysis.WithLogger(logger))
	if err != nil {
		red.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	var result any
	switch {
	case cmd[0] == "analyze" && len(cmd) == 2:
		var ta *analysis.TrackAnalysis
		ta, err = analyzeFile(ctx, engine, cache, cmd[1])
		if ta != nil {
			result = ta.Summary
		}

	case cmd[0] == "compare" && len(cmd) == 3:
		result, err = compareFiles(ctx, engine, cache, cmd[1], cmd[2])

	case cmd[0] == "history" && len(cmd) == 1:
		if cache == nil {
			red.Fprintln(stderr, "error: history requires -cache")
			return 2
		}
		result, err = history(ctx, cache, opts.limit)

	default:
		fs.Usage()
		return 2
	}

	if err != nil {
		red.Fprintf(stderr, "error [%s]: %v\n", audioerr.KindOf(err), err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		red.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newLogger(cfg config.LoggingConfig, noColor bool, w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	// stdout carries the JSON result, so every level goes to w
	logger := logging.NewWriterLogger(w, w, cfg.Color && !noColor && !color.NoColor)
	logger.SetLevel(level)
	return logger, nil
}

// analyzeFile analyses one file, consulting the cache when there is one
func analyzeFile(ctx context.Context, engine *analysis.Engine, cache *resultcache.Cache, path string) (*analysis.TrackAnalysis, error) {
	data, err := transcode.ReadInput(path, engine.Config().Decoder.MaxInputBytes)
	if err != nil {
		return nil, err
	}

	key := resultcache.Key(data, engine.Config())
	if cache != nil {
		entry, ok, err := cache.Get(ctx, key)
		if err != nil {
			logging.Warn("Cache lookup failed", logging.Fields{"error": err.Error()})
		} else if ok {
			logging.Debug("Cache hit", logging.Fields{"file": path, "key": key})
			return entry.Analysis, nil
		}
	}

	ta, err := engine.AnalyzeInput(ctx, analysis.Input{Data: data, Filename: filepath.Base(path)})
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if err := cache.Put(ctx, key, filepath.Base(path), ta); err != nil {
			logging.Warn("Failed to cache analysis", logging.Fields{"error": err.Error()})
		}
	}
	return ta, nil
}

// compareFiles compares two files. Without a cache the engine analyses both
// concurrently; with one, each file goes through the cache in turn.
func compareFiles(ctx context.Context, engine *analysis.Engine, cache *resultcache.Cache, a, b string) (*analysis.Comparison, error) {
	if cache == nil {
		limit := engine.Config().Decoder.MaxInputBytes
		da, err := transcode.ReadInput(a, limit)
		if err != nil {
			return nil, err
		}
		db, err := transcode.ReadInput(b, limit)
		if err != nil {
			return nil, err
		}
		return engine.CompareInputs(ctx,
			analysis.Input{Data: da, Filename: filepath.Base(a)},
			analysis.Input{Data: db, Filename: filepath.Base(b)},
		)
	}

	ta, err := analyzeFile(ctx, engine, cache, a)
	if err != nil {
		return nil, fmt.Errorf("track a: %w", err)
	}
	tb, err := analyzeFile(ctx, engine, cache, b)
	if err != nil {
		return nil, fmt.Errorf("track b: %w", err)
	}
	return engine.CompareAnalyses(ta, tb)
}

type historyEntry struct {
	File       string `json:"file"`
	Hash       string `json:"hash"`
	AnalyzedAt string `json:"analyzed_at"`
	analysis.Summary
}

func history(ctx context.Context, cache *resultcache.Cache, limit int) ([]historyEntry, error) {
	entries, err := cache.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{
			File:       e.Filename,
			Hash:       e.Key,
			AnalyzedAt: e.AnalyzedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Summary:    e.Analysis.Summary,
		})
	}
	return out, nil
}
