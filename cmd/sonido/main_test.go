package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writePlucks writes a 4 second 16-bit WAV of 440 Hz plucks at 120 BPM
func writePlucks(t *testing.T, dir, name string) string {
	t.Helper()
	const sr = 16384

	data := make([]int, 4*sr)
	for onset := 0.25; onset < 4; onset += 0.5 {
		first := int(onset * sr)
		for i := first; i < len(data) && i < first+sr/2; i++ {
			dt := float64(i-first) / sr
			data[i] = int(26000 * math.Exp(-dt/0.08) * math.Sin(2*math.Pi*440*dt))
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, sr, 16, 1, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sr},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-no-color"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestAnalyzeCommand(t *testing.T) {
	path := writePlucks(t, t.TempDir(), "pluck.wav")

	code, out, errOut := runCLI(t, "-log-level", "error", "analyze", path)
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, errOut)
	}

	var summary map[string]any
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("Output is not JSON: %v\n%s", err, out)
	}
	for _, key := range []string{"tempo", "key", "duration", "sample_rate", "beat_count"} {
		if _, ok := summary[key]; !ok {
			t.Errorf("Missing %q in %s", key, out)
		}
	}
	if summary["key"] != "A" {
		t.Errorf("Expected key A, got %v", summary["key"])
	}
}

func TestCompareCommandWithCache(t *testing.T) {
	dir := t.TempDir()
	a := writePlucks(t, dir, "a.wav")
	b := writePlucks(t, dir, "b.wav")
	db := filepath.Join(dir, "cache.db")

	code, out, errOut := runCLI(t, "-cache", db, "-log-level", "error", "compare", a, b)
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, errOut)
	}

	var cmp struct {
		Similarity float64 `json:"similarity"`
		MatchLevel string  `json:"match_level"`
	}
	if err := json.Unmarshal([]byte(out), &cmp); err != nil {
		t.Fatal(err)
	}
	if cmp.Similarity != 1.0 || cmp.MatchLevel != "Very High" {
		t.Errorf("Expected identical files to match exactly, got %v %s", cmp.Similarity, cmp.MatchLevel)
	}

	// both files hash the same, so one entry
	code, out, errOut = runCLI(t, "-cache", db, "history")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, errOut)
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 cached entry, got %d", len(entries))
	}
}

func TestCacheMissesAfterConfigChange(t *testing.T) {
	dir := t.TempDir()
	path := writePlucks(t, dir, "pluck.wav")
	db := filepath.Join(dir, "cache.db")
	cfg := filepath.Join(dir, "fine.yaml")
	if err := os.WriteFile(cfg, []byte("analysis:\n  hop_size: 256\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, args := range [][]string{
		{"-cache", db, "-log-level", "error", "analyze", path},
		{"-cache", db, "-log-level", "error", "analyze", path},
		{"-cache", db, "-config", cfg, "-log-level", "error", "analyze", path},
	} {
		if code, _, errOut := runCLI(t, args...); code != 0 {
			t.Fatalf("Expected exit 0 for %v, got %d: %s", args, code, errOut)
		}
	}

	// the repeat run hits, the new hop size does not
	_, out, _ := runCLI(t, "-cache", db, "history")
	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 cached entries, got %d", len(entries))
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	aiff := filepath.Join(dir, "track.aiff")
	if err := os.WriteFile(aiff, []byte("FORM"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		code    int
		message string
	}{
		{"no command", nil, 2, "usage"},
		{"unknown command", []string{"mix", "a"}, 2, "usage"},
		{"missing argument", []string{"compare", "a"}, 2, "usage"},
		{"history without cache", []string{"history"}, 2, "requires -cache"},
		{"missing file", []string{"analyze", filepath.Join(dir, "nope.wav")}, 1, "failed to read"},
		{"unsupported format", []string{"analyze", aiff}, 1, "unsupported_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.args...)
			if code != tt.code {
				t.Errorf("Expected exit %d, got %d", tt.code, code)
			}
			if !strings.Contains(errOut, tt.message) {
				t.Errorf("Expected %q in stderr, got %q", tt.message, errOut)
			}
		})
	}
}
