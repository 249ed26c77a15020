// Package analysis is the entry point of the engine: it runs a decoded signal
// through the spectral, rhythm and tonal stages and compares two tracks by
// their pitch class profiles.
package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-studio/algorithms/chroma"
	"github.com/RyanBlaney/sonido-studio/algorithms/spectral"
	"github.com/RyanBlaney/sonido-studio/algorithms/temporal"
	"github.com/RyanBlaney/sonido-studio/algorithms/tonal"
	"github.com/RyanBlaney/sonido-studio/audioerr"
	"github.com/RyanBlaney/sonido-studio/config"
	"github.com/RyanBlaney/sonido-studio/logging"
	"github.com/RyanBlaney/sonido-studio/transcode"
)

// Input is an uploaded file: raw bytes and the name it was sent with
type Input struct {
	Data     []byte
	Filename string
}

// Summary is the per-track result returned to callers
type Summary struct {
	Tempo      float64 `json:"tempo"`
	Key        string  `json:"key"`
	Duration   float64 `json:"duration"` // seconds
	SampleRate int     `json:"sample_rate"`
	BeatCount  int     `json:"beat_count"`
}

// TrackAnalysis is the summary plus the intermediate results it was read from
type TrackAnalysis struct {
	Summary

	Beats         []float64                `json:"beats"`
	Profile       chroma.PitchClassProfile `json:"profile"`
	KeyEstimate   tonal.KeyEstimate        `json:"key_estimate"`
	TempoCategory string                   `json:"tempo_category"`
	OnsetDensity  float64                  `json:"onset_density"` // onset peaks per second

	// TempoConfidence is the onset autocorrelation at the beat period relative
	// to lag 0. Values near 0 mean the envelope has no periodic structure and
	// Tempo is a weak guess.
	TempoConfidence float64 `json:"tempo_confidence"`
}

// Comparison is the result of comparing two tracks
type Comparison struct {
	TrackA     Summary           `json:"track_a"`
	TrackB     Summary           `json:"track_b"`
	Similarity float64           `json:"similarity"`
	MatchLevel chroma.MatchLevel `json:"match_level"`
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger. Without it the engine uses the global
// logger as it is at construction time.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine runs analyses. It holds only immutable configuration and is safe for
// concurrent use.
type Engine struct {
	config *config.Config

	loader     *transcode.Loader
	stft       *spectral.STFT
	beats      *temporal.BeatTracker
	chroma     *chroma.ChromaSTFT
	key        *tonal.KeyEstimator
	similarity *chroma.ProfileSimilarity
	logger     logging.Logger
}

// NewEngine creates an engine. A nil config uses config.Default().
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	// Validate fills derived defaults, so work on a copy
	c := *cfg
	c.Decoder.AllowedFormats = append([]string(nil), cfg.Decoder.AllowedFormats...)
	if err := c.Validate(); err != nil {
		return nil, audioerr.Wrap(audioerr.KindInvalidArgument, "analysis.NewEngine", err, "invalid configuration")
	}

	e := &Engine{
		config: &c,
		logger: logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	stft, err := spectral.NewSTFT(c.Analysis.WindowSize, c.Analysis.HopSize, c.Analysis.Workers, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create STFT: %w", err)
	}

	e.loader = transcode.NewLoader(c.Decoder, e.logger)
	e.stft = stft
	e.beats = temporal.NewBeatTracker(beatTrackerConfig(c.Analysis), e.logger)
	e.chroma = chroma.NewChromaSTFT(c.Analysis.TuningFrequency, c.Analysis.MinFrequency, e.logger)
	e.key = tonal.NewKeyEstimator(e.logger)
	e.similarity = chroma.NewProfileSimilarity()

	return e, nil
}

func beatTrackerConfig(a config.AnalysisConfig) temporal.BeatTrackerConfig {
	return temporal.BeatTrackerConfig{
		MinBPM:           a.MinBPM,
		MaxBPM:           a.MaxBPM,
		OnsetSmoothing:   a.OnsetSmoothing,
		SnapTolerance:    a.SnapTolerance,
		OctaveCorrection: a.OctaveCorrection,
	}
}

// Config returns a copy of the validated configuration
func (e *Engine) Config() config.Config {
	return *e.config
}

// Analyze estimates tempo, beats and dominant pitch class of a signal.
// Any stage error aborts the analysis; no partial result is returned.
func (e *Engine) Analyze(ctx context.Context, signal *transcode.AudioSignal) (*TrackAnalysis, error) {
	const op = "analysis.Engine.Analyze"

	if signal == nil {
		return nil, audioerr.New(audioerr.KindInvalidArgument, op, "signal is nil")
	}

	logger := e.logger.WithContext(ctx).WithFields(logging.Fields{
		"component": "engine",
		"function":  "Analyze",
	})
	start := time.Now()

	spec, err := e.stft.Compute(ctx, signal.Mono(), signal.SampleRate())
	if err != nil {
		return nil, fmt.Errorf("spectral analysis failed: %w", err)
	}

	track, err := e.beats.Track(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("beat tracking failed: %w", err)
	}

	chromagram, err := e.chroma.Compute(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("chroma extraction failed: %w", err)
	}

	profile := chromagram.Profile()
	key := e.key.EstimateProfile(profile)

	result := &TrackAnalysis{
		Summary: Summary{
			Tempo:      track.Tempo,
			Key:        key.Name,
			Duration:   signal.Duration(),
			SampleRate: signal.SampleRate(),
			BeatCount:  track.BeatCount(),
		},
		Beats:           track.Beats,
		Profile:         profile,
		KeyEstimate:     key,
		TempoCategory:   track.Category,
		OnsetDensity:    track.OnsetDensity,
		TempoConfidence: track.Confidence,
	}

	logger.Info("Analysis complete", logging.Fields{
		"tempo":      result.Tempo,
		"key":        result.Key,
		"duration":   result.Duration,
		"beat_count": result.BeatCount,
		"frames":     spec.NumFrames(),
		"elapsed":    time.Since(start).String(),
	})

	return result, nil
}

// AnalyzeInput decodes an uploaded file and analyses it
func (e *Engine) AnalyzeInput(ctx context.Context, in Input) (*TrackAnalysis, error) {
	ctx = logging.ContextWithFields(ctx, logging.Fields{"filename": in.Filename})

	signal, err := e.loader.Load(ctx, in.Data, in.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load %q: %w", in.Filename, err)
	}
	return e.Analyze(ctx, signal)
}

// Compare analyses both signals concurrently and correlates their profiles
func (e *Engine) Compare(ctx context.Context, a, b *transcode.AudioSignal) (*Comparison, error) {
	return e.compare(ctx,
		func(ctx context.Context) (*TrackAnalysis, error) { return e.Analyze(ctx, a) },
		func(ctx context.Context) (*TrackAnalysis, error) { return e.Analyze(ctx, b) },
	)
}

// CompareInputs decodes and analyses both uploads concurrently and correlates
// their profiles
func (e *Engine) CompareInputs(ctx context.Context, a, b Input) (*Comparison, error) {
	return e.compare(ctx,
		func(ctx context.Context) (*TrackAnalysis, error) { return e.AnalyzeInput(ctx, a) },
		func(ctx context.Context) (*TrackAnalysis, error) { return e.AnalyzeInput(ctx, b) },
	)
}

// CompareAnalyses correlates the profiles of two finished analyses
func (e *Engine) CompareAnalyses(a, b *TrackAnalysis) (*Comparison, error) {
	if a == nil || b == nil {
		return nil, audioerr.New(audioerr.KindInvalidArgument, "analysis.Engine.CompareAnalyses", "analysis is nil")
	}

	sim, err := e.similarity.Compare(a.Profile, b.Profile)
	if err != nil {
		return nil, fmt.Errorf("profile comparison failed: %w", err)
	}

	return &Comparison{
		TrackA:     a.Summary,
		TrackB:     b.Summary,
		Similarity: sim.Score,
		MatchLevel: sim.Level,
	}, nil
}

type analyzeFunc func(ctx context.Context) (*TrackAnalysis, error)

// compare runs both analyses in parallel. The first failure cancels the other
// and is the error returned.
func (e *Engine) compare(ctx context.Context, fa, fb analyzeFunc) (*Comparison, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		results  [2]*TrackAnalysis
	)

	for i, f := range []analyzeFunc{fa, fb} {
		wg.Add(1)
		go func(i int, f analyzeFunc) {
			defer wg.Done()
			res, err := f(ctx)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("track %c: %w", 'a'+i, err)
					cancel()
				}
				mu.Unlock()
				return
			}
			results[i] = res
		}(i, f)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	comparison, err := e.CompareAnalyses(results[0], results[1])
	if err != nil {
		return nil, err
	}

	e.logger.WithContext(ctx).WithFields(logging.Fields{
		"component": "engine",
		"function":  "Compare",
	}).Info("Comparison complete", logging.Fields{
		"similarity":  comparison.Similarity,
		"match_level": comparison.MatchLevel,
	})

	return comparison, nil
}
