package resultcache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/sonido-studio/algorithms/chroma"
	"github.com/RyanBlaney/sonido-studio/analysis"
	"github.com/RyanBlaney/sonido-studio/config"
)

func openCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleAnalysis(tempo float64, key string) *analysis.TrackAnalysis {
	return &analysis.TrackAnalysis{
		Summary: analysis.Summary{
			Tempo:      tempo,
			Key:        key,
			Duration:   8,
			SampleRate: 44100,
			BeatCount:  3,
		},
		Beats:   []float64{0.5, 1.0, 1.5},
		Profile: chroma.PitchClassProfile{9: 4, 4: 1},
	}
}

func TestKey(t *testing.T) {
	cfg := *config.Default()

	if Key([]byte("abc"), cfg) != Key([]byte("abc"), cfg) {
		t.Error("Expected stable keys")
	}
	if Key([]byte("abc"), cfg) == Key([]byte("abd"), cfg) {
		t.Error("Expected distinct keys")
	}
	if len(Key(nil, cfg)) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(Key(nil, cfg)))
	}
}

func TestKeyFollowsAnalysisSettings(t *testing.T) {
	base := *config.Default()
	key := Key([]byte("track"), base)

	changed := map[string]func(c *config.Config){
		"window size":        func(c *config.Config) { c.Analysis.WindowSize = 4096 },
		"hop size":           func(c *config.Config) { c.Analysis.HopSize = 256 },
		"bpm range":          func(c *config.Config) { c.Analysis.MaxBPM = 200 },
		"tuning":             func(c *config.Config) { c.Analysis.TuningFrequency = 432 },
		"target sample rate": func(c *config.Config) { c.Decoder.TargetSampleRate = 22050 },
	}
	for name, mutate := range changed {
		cfg := base
		mutate(&cfg)
		if Key([]byte("track"), cfg) == key {
			t.Errorf("%s: expected a new key", name)
		}
	}

	same := map[string]func(c *config.Config){
		"workers":   func(c *config.Config) { c.Analysis.Workers = 7 },
		"log level": func(c *config.Config) { c.Logging.Level = "debug" },
		"size cap":  func(c *config.Config) { c.Decoder.MaxInputBytes = 1 << 20 },
	}
	for name, mutate := range same {
		cfg := base
		mutate(&cfg)
		if Key([]byte("track"), cfg) != key {
			t.Errorf("%s: expected the key to be unchanged", name)
		}
	}
}

func TestPutGet(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	key := Key([]byte("track"), *config.Default())

	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("Expected miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Put(ctx, key, "track.wav", sampleAnalysis(120, "A")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Expected hit, got ok=%v err=%v", ok, err)
	}
	if entry.Filename != "track.wav" {
		t.Errorf("Expected filename track.wav, got %s", entry.Filename)
	}
	got := entry.Analysis
	if got.Tempo != 120 || got.Key != "A" || got.BeatCount != 3 {
		t.Errorf("Unexpected summary %+v", got.Summary)
	}
	if got.Profile[9] != 4 || len(got.Beats) != 3 {
		t.Errorf("Profile or beats lost: %v %v", got.Profile, got.Beats)
	}
}

func TestPutReplaces(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	key := Key([]byte("track"), *config.Default())

	if err := c.Put(ctx, key, "old.wav", sampleAnalysis(90, "C")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, key, "new.wav", sampleAnalysis(128, "D")); err != nil {
		t.Fatal(err)
	}

	entry, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Expected hit, got ok=%v err=%v", ok, err)
	}
	if entry.Filename != "new.wav" || entry.Analysis.Tempo != 128 {
		t.Errorf("Expected replaced entry, got %s %f", entry.Filename, entry.Analysis.Tempo)
	}

	recent, err := c.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(recent))
	}
}

func TestRecent(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()

	for i, key := range []string{"C", "D", "E"} {
		if err := c.Put(ctx, Key([]byte(key), *config.Default()), key+".wav", sampleAnalysis(float64(100+i), key)); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := c.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(recent))
	}
	if recent[0].Filename != "E.wav" || recent[1].Filename != "D.wav" {
		t.Errorf("Expected newest first, got %s, %s", recent[0].Filename, recent[1].Filename)
	}
}

func TestPutNil(t *testing.T) {
	if err := openCache(t).Put(context.Background(), "k", "f", nil); err == nil {
		t.Error("Expected error for nil analysis")
	}
}
