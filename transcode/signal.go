package transcode

import (
	"math"
	"time"

	"github.com/RyanBlaney/sonido-studio/audioerr"
)

// AudioSignal is a decoded, immutable sample buffer.
// Samples are interleaved by channel and normalised to [-1, 1].
type AudioSignal struct {
	samples    []float64
	sampleRate int
	channels   int
	format     Format
}

// NewSignal creates an AudioSignal from interleaved samples.
// The slice is copied; values outside [-1, 1] are clamped and NaN becomes 0.
func NewSignal(samples []float64, sampleRate, channels int) (*AudioSignal, error) {
	const op = "transcode.NewSignal"

	if sampleRate <= 0 {
		return nil, audioerr.New(audioerr.KindInvalidArgument, op, "sample rate must be positive: %d", sampleRate)
	}
	if channels <= 0 {
		return nil, audioerr.New(audioerr.KindInvalidArgument, op, "channel count must be positive: %d", channels)
	}
	if len(samples)%channels != 0 {
		return nil, audioerr.New(audioerr.KindInvalidArgument, op,
			"%d samples do not divide into %d channels", len(samples), channels)
	}

	owned := make([]float64, len(samples))
	for i, v := range samples {
		switch {
		case math.IsNaN(v):
			owned[i] = 0
		case v > 1:
			owned[i] = 1
		case v < -1:
			owned[i] = -1
		default:
			owned[i] = v
		}
	}

	return &AudioSignal{
		samples:    owned,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// SampleRate returns the sample rate in Hz
func (s *AudioSignal) SampleRate() int {
	return s.sampleRate
}

// Channels returns the channel count
func (s *AudioSignal) Channels() int {
	return s.channels
}

// Format returns the container the signal was decoded from, empty for synthetic signals
func (s *AudioSignal) Format() Format {
	return s.format
}

// Samples returns a copy of the interleaved samples
func (s *AudioSignal) Samples() []float64 {
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}

// Frames returns the number of sample frames (samples per channel)
func (s *AudioSignal) Frames() int {
	return len(s.samples) / s.channels
}

// Duration returns the signal length in seconds
func (s *AudioSignal) Duration() float64 {
	return float64(s.Frames()) / float64(s.sampleRate)
}

// DurationTime returns the signal length as a time.Duration
func (s *AudioSignal) DurationTime() time.Duration {
	return time.Duration(s.Duration() * float64(time.Second))
}

// Mono returns the channel average as a new slice
func (s *AudioSignal) Mono() []float64 {
	if s.channels == 1 {
		return s.Samples()
	}

	frames := s.Frames()
	mono := make([]float64, frames)
	scale := 1.0 / float64(s.channels)

	for i := range frames {
		sum := 0.0
		base := i * s.channels
		for c := range s.channels {
			sum += s.samples[base+c]
		}
		mono[i] = sum * scale
	}

	return mono
}

// Channel returns a copy of one de-interleaved channel
func (s *AudioSignal) Channel(c int) []float64 {
	if c < 0 || c >= s.channels {
		return nil
	}

	frames := s.Frames()
	out := make([]float64, frames)
	for i := range frames {
		out[i] = s.samples[i*s.channels+c]
	}
	return out
}

func (s *AudioSignal) withFormat(f Format) *AudioSignal {
	s.format = f
	return s
}
