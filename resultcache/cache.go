// Package resultcache persists finished analyses in SQLite, keyed by the
// SHA-256 of the uploaded bytes and of the settings that shape the result.
// The engine never consults it; callers decide when a cached result is good
// enough.
package resultcache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/RyanBlaney/sonido-studio/analysis"
	"github.com/RyanBlaney/sonido-studio/config"
	"github.com/RyanBlaney/sonido-studio/logging"
)

// Entry is one cached analysis
type Entry struct {
	Key        string
	Filename   string
	Analysis   *analysis.TrackAnalysis
	AnalyzedAt time.Time
}

// Cache is a SQLite-backed analysis store
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at path
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening cache database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating cache tables: %w", err)
	}

	logging.WithFields(logging.Fields{
		"component": "result_cache",
		"function":  "Open",
	}).Debug("Result cache opened", logging.Fields{"path": path})

	return &Cache{db: db}, nil
}

func createTables(db *sql.DB) error {
	createAnalysesTable := `
    CREATE TABLE IF NOT EXISTS analyses (
        cache_key TEXT PRIMARY KEY,
        filename TEXT NOT NULL,
        tempo REAL NOT NULL,
        key TEXT NOT NULL,
        duration REAL NOT NULL,
        sample_rate INTEGER NOT NULL,
        beat_count INTEGER NOT NULL,
        result TEXT NOT NULL,
        analyzed_at INTEGER NOT NULL
    );
    `

	_, err := db.Exec(createAnalysesTable)
	return err
}

// Close closes the database
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// keySettings are the configuration values that change an analysis result
type keySettings struct {
	Analysis         config.AnalysisConfig `json:"analysis"`
	TargetSampleRate int                   `json:"target_sample_rate"`
	ResampleHalfTaps int                   `json:"resample_half_taps"`
}

// Key returns the cache key for raw input bytes analysed under cfg.
// Settings that only affect speed, such as the worker count, are ignored.
func Key(data []byte, cfg config.Config) string {
	settings := keySettings{
		Analysis:         cfg.Analysis,
		TargetSampleRate: cfg.Decoder.TargetSampleRate,
		ResampleHalfTaps: cfg.Decoder.ResampleHalfTaps,
	}
	settings.Analysis.Workers = 0

	// a struct of plain numbers always marshals
	encoded, _ := json.Marshal(settings)

	h := sha256.New()
	h.Write(data)
	h.Write(encoded)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached analysis for key. The bool is false on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	row := c.db.QueryRowContext(ctx,
		"SELECT filename, result, analyzed_at FROM analyses WHERE cache_key = ?", key)

	var (
		filename string
		result   string
		unix     int64
	)
	if err := row.Scan(&filename, &result, &unix); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached analysis: %w", err)
	}

	var ta analysis.TrackAnalysis
	if err := json.Unmarshal([]byte(result), &ta); err != nil {
		return nil, false, fmt.Errorf("corrupt cached analysis %s: %w", key, err)
	}

	return &Entry{
		Key:        key,
		Filename:   filename,
		Analysis:   &ta,
		AnalyzedAt: time.Unix(unix, 0),
	}, true, nil
}

// Put stores an analysis, replacing any previous entry for key
func (c *Cache) Put(ctx context.Context, key, filename string, ta *analysis.TrackAnalysis) error {
	if ta == nil {
		return fmt.Errorf("cannot cache a nil analysis")
	}

	result, err := json.Marshal(ta)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analyses
			(cache_key, filename, tempo, key, duration, sample_rate, beat_count, result, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key, filename, ta.Tempo, ta.Key, ta.Duration, ta.SampleRate, ta.BeatCount, string(result), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store analysis: %w", err)
	}

	return nil
}

// Recent returns summaries of the most recently stored analyses, newest first
func (c *Cache) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT cache_key, filename, tempo, key, duration, sample_rate, beat_count, analyzed_at
		FROM analyses
		ORDER BY analyzed_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			s    analysis.Summary
			unix int64
		)
		if err := rows.Scan(&e.Key, &e.Filename, &s.Tempo, &s.Key, &s.Duration, &s.SampleRate, &s.BeatCount, &unix); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		e.Analysis = &analysis.TrackAnalysis{Summary: s}
		e.AnalyzedAt = time.Unix(unix, 0)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
