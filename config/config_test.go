package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	if cfg.Analysis.HopSize != cfg.Analysis.WindowSize/4 {
		t.Errorf("Expected hop W/4, got %d", cfg.Analysis.HopSize)
	}
	if len(cfg.Decoder.AllowedFormats) != 5 {
		t.Errorf("Expected 5 allowed formats, got %v", cfg.Decoder.AllowedFormats)
	}
}

func TestDefaultDoesNotShareAllowList(t *testing.T) {
	a := Default()
	a.Decoder.AllowedFormats[0] = "xyz"
	if DefaultAllowedFormats[0] == "xyz" {
		t.Error("Default() must copy the allow list")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sonido.yaml")
	body := `
decoder:
  allowed_formats: [wav, flac]
  target_sample_rate: 22050
  timeout: 5s
analysis:
  window_size: 4096
  hop_size: 0
  min_bpm: 60
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LOG_LEVEL", "")
	t.Setenv("MAX_CONTENT_LENGTH", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.Decoder.AllowedFormats; len(got) != 2 || got[0] != "wav" || got[1] != "flac" {
		t.Errorf("Unexpected allowed formats: %v", got)
	}
	if cfg.Decoder.TargetSampleRate != 22050 {
		t.Errorf("Expected 22050, got %d", cfg.Decoder.TargetSampleRate)
	}
	if cfg.Decoder.Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %v", cfg.Decoder.Timeout)
	}
	if cfg.Analysis.WindowSize != 4096 || cfg.Analysis.HopSize != 1024 {
		t.Errorf("Expected 4096/1024, got %d/%d", cfg.Analysis.WindowSize, cfg.Analysis.HopSize)
	}
	if cfg.Analysis.MinBPM != 60 || cfg.Analysis.MaxBPM != 240 {
		t.Errorf("Expected bpm range [60,240], got [%g,%g]", cfg.Analysis.MinBPM, cfg.Analysis.MaxBPM)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LOG_LEVEL":          "warn",
		"MAX_CONTENT_LENGTH": "1024",
	}
	cfg := Default()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected warn, got %q", cfg.Logging.Level)
	}
	if cfg.Decoder.MaxInputBytes != 1024 {
		t.Errorf("Expected 1024, got %d", cfg.Decoder.MaxInputBytes)
	}

	env["MAX_CONTENT_LENGTH"] = "lots"
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err == nil {
		t.Error("Expected error for non-numeric MAX_CONTENT_LENGTH")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"window not power of two", func(c *Config) { c.Analysis.WindowSize = 1000 }},
		{"hop larger than window", func(c *Config) { c.Analysis.HopSize = 4096 }},
		{"empty allow list", func(c *Config) { c.Decoder.AllowedFormats = nil }},
		{"inverted bpm range", func(c *Config) { c.Analysis.MinBPM, c.Analysis.MaxBPM = 200, 100 }},
		{"zero smoothing", func(c *Config) { c.Analysis.OnsetSmoothing = 0 }},
		{"tolerance too wide", func(c *Config) { c.Analysis.SnapTolerance = 0.5 }},
		{"negative target rate", func(c *Config) { c.Decoder.TargetSampleRate = -1 }},
		{"zero tuning", func(c *Config) { c.Analysis.TuningFrequency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
