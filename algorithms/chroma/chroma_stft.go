package chroma

import (
	"context"
	"math"

	"github.com/RyanBlaney/sonido-studio/algorithms/spectral"
	"github.com/RyanBlaney/sonido-studio/audioerr"
	"github.com/RyanBlaney/sonido-studio/logging"
)

// NumPitchClasses is the number of chroma bins
const NumPitchClasses = 12

// ChromaFrame holds the energy of each pitch class C..B for one frame
type ChromaFrame [NumPitchClasses]float64

// Chromagram is a time-ordered sequence of chroma frames, one per
// spectrogram frame
type Chromagram struct {
	Frames      []ChromaFrame `json:"frames"`
	HopDuration float64       `json:"hop_duration"`
}

// NumFrames returns the number of frames
func (c *Chromagram) NumFrames() int {
	return len(c.Frames)
}

// ChromaSTFT folds a magnitude spectrogram into 12 pitch classes
//
// Each FFT bin is assigned to the nearest equal-tempered semitone and its
// energy (magnitude squared) is added to that semitone's pitch class.
// Frames are left unnormalised so the profile sum keeps loudness weighting.
type ChromaSTFT struct {
	tuningFreq float64 // A4 frequency (default 440 Hz)
	minFreq    float64 // bins below this are ignored
	logger     logging.Logger
}

// NewChromaSTFT creates a new STFT-based chromagram calculator
func NewChromaSTFT(tuningFreq, minFreq float64, logger logging.Logger) *ChromaSTFT {
	if tuningFreq <= 0 {
		tuningFreq = 440.0
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &ChromaSTFT{
		tuningFreq: tuningFreq,
		minFreq:    minFreq,
		logger:     logger,
	}
}

// NewChromaSTFTDefault creates chromagram with standard A4=440Hz tuning and a 20 Hz floor
func NewChromaSTFTDefault() *ChromaSTFT {
	return NewChromaSTFT(440.0, 20.0, nil)
}

// Compute converts a spectrogram to a chromagram with the same frame count
func (cs *ChromaSTFT) Compute(ctx context.Context, spec *spectral.Spectrogram) (*Chromagram, error) {
	const op = "chroma.ChromaSTFT.Compute"

	if spec == nil {
		return nil, audioerr.New(audioerr.KindInvalidArgument, op, "nil spectrogram")
	}

	mapping := cs.chromaMapping(spec)
	frames := make([]ChromaFrame, len(spec.Frames))

	for t, frame := range spec.Frames {
		if err := audioerr.Cancelled(ctx, op); err != nil {
			return nil, err
		}

		for f, magnitude := range frame.Magnitude {
			if bin := mapping[f]; bin >= 0 {
				// Use magnitude squared for energy
				frames[t][bin] += magnitude * magnitude
			}
		}
	}

	cs.logger.Debug("Chromagram computed", logging.Fields{
		"component": "chroma_stft",
		"function":  "Compute",
		"frames":    len(frames),
	})

	return &Chromagram{
		Frames:      frames,
		HopDuration: spec.HopDuration(),
	}, nil
}

// chromaMapping maps FFT bins to chroma bins, -1 for excluded bins
func (cs *ChromaSTFT) chromaMapping(spec *spectral.Spectrogram) []int {
	mapping := make([]int, spec.NumBins())

	for f := range mapping {
		frequency := spec.BinFrequency(f)

		// DC never carries pitch
		if f == 0 || frequency < cs.minFreq {
			mapping[f] = -1
			continue
		}

		mapping[f] = cs.PitchClassOf(frequency)
	}

	return mapping
}

// PitchClassOf returns the pitch class (0 = C) of the semitone nearest to frequency
func (cs *ChromaSTFT) PitchClassOf(frequency float64) int {
	midiNote := int(math.Round(cs.frequencyToMIDI(frequency)))
	return ((midiNote % NumPitchClasses) + NumPitchClasses) % NumPitchClasses
}

// frequencyToMIDI converts frequency to MIDI note number
func (cs *ChromaSTFT) frequencyToMIDI(frequency float64) float64 {
	// MIDI note number: 69 + 12 * log2(f/440)
	// A4 (440 Hz) = MIDI note 69, and note 60 is C
	return 69.0 + 12.0*math.Log2(frequency/cs.tuningFreq)
}
