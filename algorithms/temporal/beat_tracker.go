// Package temporal tracks rhythm: onset strength, global tempo and beat
// positions derived from a magnitude spectrogram.
package temporal

import (
	"context"
	"math"

	"github.com/RyanBlaney/sonido-studio/algorithms/common"
	"github.com/RyanBlaney/sonido-studio/algorithms/spectral"
	"github.com/RyanBlaney/sonido-studio/audioerr"
	"github.com/RyanBlaney/sonido-studio/logging"
)

// BeatTrack is a global tempo and the beat times phase-locked to onsets
type BeatTrack struct {
	Tempo        float64   `json:"tempo"`
	Category     string    `json:"category"`
	Beats        []float64 `json:"beats"` // seconds, strictly increasing
	BeatFrames   []int     `json:"-"`
	Confidence   float64   `json:"confidence"`
	OnsetDensity float64   `json:"onset_density"` // onset peaks per second
}

// BeatCount returns the number of beats
func (b *BeatTrack) BeatCount() int {
	return len(b.Beats)
}

// flatOnsetRatio bounds the onset envelope of a steady signal: a peak flux
// below this fraction of the mean frame magnitude is rounding noise
const flatOnsetRatio = 1e-4

// BeatTrackerConfig holds beat tracker parameters
type BeatTrackerConfig struct {
	MinBPM           float64
	MaxBPM           float64
	OnsetSmoothing   int     // frames
	SnapTolerance    float64 // fraction of the beat interval
	OctaveCorrection float64
}

// DefaultBeatTrackerConfig returns the default beat tracker configuration
func DefaultBeatTrackerConfig() BeatTrackerConfig {
	return BeatTrackerConfig{
		MinBPM:           40,
		MaxBPM:           240,
		OnsetSmoothing:   3,
		SnapTolerance:    0.1,
		OctaveCorrection: 0.5,
	}
}

// BeatTracker estimates tempo and places beats on a spectrogram
type BeatTracker struct {
	onsets        *OnsetDetection
	tempo         *TempoEstimation
	snapTolerance float64
	logger        logging.Logger
}

// NewBeatTracker creates a beat tracker
func NewBeatTracker(cfg BeatTrackerConfig, logger logging.Logger) *BeatTracker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &BeatTracker{
		onsets:        NewOnsetDetection(cfg.OnsetSmoothing),
		tempo:         NewTempoEstimation(cfg.MinBPM, cfg.MaxBPM, cfg.OctaveCorrection),
		snapTolerance: cfg.SnapTolerance,
		logger:        logger,
	}
}

// Track estimates the global tempo and beat positions.
// A signal shorter than one window, or one without onsets, has no tempo and
// yields an InsufficientSignal error rather than 0 BPM.
func (bt *BeatTracker) Track(ctx context.Context, spec *spectral.Spectrogram) (*BeatTrack, error) {
	const op = "temporal.BeatTracker.Track"

	logger := bt.logger.WithContext(ctx).WithFields(logging.Fields{
		"component": "beat_tracker",
		"function":  "Track",
	})

	if spec == nil || spec.NumFrames() == 0 || spec.SampleCount < spec.WindowSize {
		return nil, audioerr.New(audioerr.KindInsufficientSignal, op, "signal shorter than one analysis window")
	}
	if err := audioerr.Cancelled(ctx, op); err != nil {
		return nil, err
	}

	strength := bt.onsets.Strength(spec)
	if isFlat(strength, spec) {
		logger.Debug("Tempo undefined: flat onset envelope")
		return nil, audioerr.New(audioerr.KindInsufficientSignal, op, "tempo undefined: no onsets")
	}

	tempo, err := bt.tempo.Estimate(strength, spec.HopDuration())
	if err != nil {
		logger.Debug("Tempo undefined", logging.Fields{"reason": err.Error()})
		return nil, err
	}

	if err := audioerr.Cancelled(ctx, op); err != nil {
		return nil, err
	}

	frames := bt.placeBeats(strength, tempo.Period)

	beats := make([]float64, len(frames))
	for i, f := range frames {
		beats[i] = spec.FrameStartTime(f)
	}

	track := &BeatTrack{
		Tempo:        tempo.BPM,
		Category:     bt.tempo.ClassifyTempoCategory(tempo.BPM),
		Beats:        beats,
		BeatFrames:   frames,
		Confidence:   tempo.Confidence,
		OnsetDensity: bt.onsets.OnsetDensity(strength, spec.HopDuration()),
	}

	logger.Debug("Beats tracked", logging.Fields{
		"tempo":         track.Tempo,
		"category":      track.Category,
		"period":        tempo.Period,
		"beat_count":    len(beats),
		"confidence":    track.Confidence,
		"onset_density": track.OnsetDensity,
	})

	return track, nil
}

// isFlat reports whether the envelope carries no onsets relative to the
// signal level. Silence is flat, and so is a steady tone whose flux is only
// rounding noise.
func isFlat(strength []float64, spec *spectral.Spectrogram) bool {
	if len(strength) == 0 {
		return true
	}

	level := 0.0
	for _, frame := range spec.Frames {
		level += common.Sum(frame.Magnitude)
	}
	level /= float64(len(spec.Frames))

	return strength[common.ArgMax(strength)] <= flatOnsetRatio*level
}

// placeBeats walks outward from the strongest onset at the given interval,
// snapping each prediction to the nearest onset peak within tolerance
func (bt *BeatTracker) placeBeats(strength []float64, interval float64) []int {
	n := len(strength)
	anchor := common.ArgMax(strength)
	tol := max(1, int(math.Round(bt.snapTolerance*interval)))

	var backward []int
	prev := anchor
	for {
		predicted := int(math.Round(float64(prev) - interval))
		if predicted < 0 {
			break
		}
		beat := bt.snap(strength, predicted, tol)
		if beat >= prev {
			beat = predicted
		}
		if beat >= prev || beat < 0 {
			break
		}
		backward = append(backward, beat)
		prev = beat
	}

	frames := make([]int, 0, len(backward)+1+int(float64(n)/interval))
	for i := len(backward) - 1; i >= 0; i-- {
		frames = append(frames, backward[i])
	}
	frames = append(frames, anchor)

	prev = anchor
	for {
		predicted := int(math.Round(float64(prev) + interval))
		if predicted >= n {
			break
		}
		beat := bt.snap(strength, predicted, tol)
		if beat <= prev {
			beat = predicted
		}
		if beat <= prev || beat >= n {
			break
		}
		frames = append(frames, beat)
		prev = beat
	}

	return frames
}

// snap returns the onset peak nearest to predicted within ±tol frames,
// preferring the stronger peak at equal distance, or predicted when there is none
func (bt *BeatTracker) snap(strength []float64, predicted, tol int) int {
	best := -1
	bestDist := tol + 1

	lo := max(predicted-tol, 0)
	hi := min(predicted+tol, len(strength)-1)
	for i := lo; i <= hi; i++ {
		if strength[i] <= 0 || !common.IsLocalPeak(strength, i) {
			continue
		}
		dist := i - predicted
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist || (dist == bestDist && strength[i] > strength[best]) {
			best, bestDist = i, dist
		}
	}

	if best < 0 {
		return predicted
	}
	return best
}
