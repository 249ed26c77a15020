// Package config holds the engine configuration.
//
// Values start from Default(), are overlaid by an optional YAML file and then
// by a small set of environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration
type Config struct {
	Decoder  DecoderConfig  `yaml:"decoder" json:"decoder"`
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// DecoderConfig configures the signal loader
type DecoderConfig struct {
	// AllowedFormats is the accept list of container formats, e.g. wav, flac
	AllowedFormats []string `yaml:"allowed_formats" json:"allowed_formats"`

	// TargetSampleRate resamples decoded audio when > 0; 0 keeps the native rate
	TargetSampleRate int `yaml:"target_sample_rate" json:"target_sample_rate"`

	// ResampleHalfTaps is the one-sided length of the sinc interpolation kernel
	ResampleHalfTaps int `yaml:"resample_half_taps" json:"resample_half_taps"`

	MaxInputBytes int64         `yaml:"max_input_bytes" json:"max_input_bytes"`
	FFmpegPath    string        `yaml:"ffmpeg_path" json:"ffmpeg_path"`
	FFprobePath   string        `yaml:"ffprobe_path" json:"ffprobe_path"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

// AnalysisConfig configures the spectral, beat and chroma stages
type AnalysisConfig struct {
	WindowSize int `yaml:"window_size" json:"window_size"` // power of two
	HopSize    int `yaml:"hop_size" json:"hop_size"`       // 0 means WindowSize/4
	Workers    int `yaml:"workers" json:"workers"`         // 0 means runtime.NumCPU()

	MinFrequency    float64 `yaml:"min_frequency" json:"min_frequency"`       // Hz, chroma floor
	TuningFrequency float64 `yaml:"tuning_frequency" json:"tuning_frequency"` // A4 in Hz

	MinBPM           float64 `yaml:"min_bpm" json:"min_bpm"`
	MaxBPM           float64 `yaml:"max_bpm" json:"max_bpm"`
	OnsetSmoothing   int     `yaml:"onset_smoothing" json:"onset_smoothing"`     // moving average width in frames
	SnapTolerance    float64 `yaml:"snap_tolerance" json:"snap_tolerance"`       // fraction of the beat interval
	OctaveCorrection float64 `yaml:"octave_correction" json:"octave_correction"` // 0 disables
}

// LoggingConfig configures the default logger
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	Color bool   `yaml:"color" json:"color"`
}

// DefaultAllowedFormats mirrors the upload accept list of the music studio service
var DefaultAllowedFormats = []string{"wav", "flac", "ogg", "mp3", "m4a"}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Decoder: DecoderConfig{
			AllowedFormats:   append([]string(nil), DefaultAllowedFormats...),
			TargetSampleRate: 0, // native rate
			ResampleHalfTaps: 32,
			MaxInputBytes:    50 * 1024 * 1024,
			FFmpegPath:       "ffmpeg",
			FFprobePath:      "ffprobe",
			Timeout:          30 * time.Second,
		},
		Analysis: AnalysisConfig{
			WindowSize:       2048,
			HopSize:          512,
			Workers:          0,
			MinFrequency:     20.0,
			TuningFrequency:  440.0,
			MinBPM:           40.0,
			MaxBPM:           240.0,
			OnsetSmoothing:   3,
			SnapTolerance:    0.1,
			OctaveCorrection: 0.5,
		},
		Logging: LoggingConfig{
			Level: "info",
			Color: true,
		},
	}
}

// Load reads a YAML file over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overlays LOG_LEVEL and MAX_CONTENT_LENGTH
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if lvl := getenv("LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}

	if raw := getenv("MAX_CONTENT_LENGTH"); raw != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_CONTENT_LENGTH %q: %w", raw, err)
		}
		c.Decoder.MaxInputBytes = n
	}

	return nil
}

// Validate checks the configuration and fills derived defaults
func (c *Config) Validate() error {
	if len(c.Decoder.AllowedFormats) == 0 {
		return fmt.Errorf("decoder.allowed_formats must not be empty")
	}
	if c.Decoder.TargetSampleRate < 0 {
		return fmt.Errorf("decoder.target_sample_rate must not be negative: %d", c.Decoder.TargetSampleRate)
	}
	if c.Decoder.ResampleHalfTaps <= 0 {
		return fmt.Errorf("decoder.resample_half_taps must be positive: %d", c.Decoder.ResampleHalfTaps)
	}
	if c.Decoder.MaxInputBytes <= 0 {
		return fmt.Errorf("decoder.max_input_bytes must be positive: %d", c.Decoder.MaxInputBytes)
	}

	a := &c.Analysis
	if a.WindowSize <= 0 || a.WindowSize&(a.WindowSize-1) != 0 {
		return fmt.Errorf("analysis.window_size must be a power of two: %d", a.WindowSize)
	}
	if a.HopSize == 0 {
		a.HopSize = a.WindowSize / 4
	}
	if a.HopSize < 0 || a.HopSize > a.WindowSize {
		return fmt.Errorf("analysis.hop_size must be in (0, window_size]: %d", a.HopSize)
	}
	if a.Workers < 0 {
		return fmt.Errorf("analysis.workers must not be negative: %d", a.Workers)
	}
	if a.MinFrequency < 0 {
		return fmt.Errorf("analysis.min_frequency must not be negative: %g", a.MinFrequency)
	}
	if a.TuningFrequency <= 0 {
		return fmt.Errorf("analysis.tuning_frequency must be positive: %g", a.TuningFrequency)
	}
	if a.MinBPM <= 0 || a.MaxBPM <= a.MinBPM {
		return fmt.Errorf("analysis bpm range invalid: [%g, %g]", a.MinBPM, a.MaxBPM)
	}
	if a.OnsetSmoothing < 1 {
		return fmt.Errorf("analysis.onset_smoothing must be at least 1: %d", a.OnsetSmoothing)
	}
	if a.SnapTolerance < 0 || a.SnapTolerance >= 0.5 {
		return fmt.Errorf("analysis.snap_tolerance must be in [0, 0.5): %g", a.SnapTolerance)
	}
	if a.OctaveCorrection < 0 || a.OctaveCorrection > 1 {
		return fmt.Errorf("analysis.octave_correction must be in [0, 1]: %g", a.OctaveCorrection)
	}

	return nil
}
