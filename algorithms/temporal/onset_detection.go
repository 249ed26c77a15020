package temporal

import (
	"github.com/RyanBlaney/sonido-studio/algorithms/common"
	"github.com/RyanBlaney/sonido-studio/algorithms/spectral"
)

// OnsetDetection derives an onset strength envelope from a spectrogram
type OnsetDetection struct {
	flux      *spectral.SpectralFlux
	smoothing int // centred moving average width in frames
}

// NewOnsetDetection creates a new onset detector
func NewOnsetDetection(smoothing int) *OnsetDetection {
	if smoothing < 1 {
		smoothing = 1
	}
	return &OnsetDetection{
		flux:      spectral.NewSpectralFlux(),
		smoothing: smoothing,
	}
}

// Strength returns the smoothed positive spectral flux, one value per frame
func (od *OnsetDetection) Strength(spec *spectral.Spectrogram) []float64 {
	flux := od.flux.Compute(spec)
	return common.CenteredMovingAverage(flux, od.smoothing)
}

// Peaks returns the frames that are local maxima of the envelope and exceed threshold
func (od *OnsetDetection) Peaks(strength []float64, threshold float64) []int {
	var peaks []int
	for i, v := range strength {
		if v > threshold && common.IsLocalPeak(strength, i) {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// OnsetDensity returns peaks per second above the envelope mean
func (od *OnsetDetection) OnsetDensity(strength []float64, hopDuration float64) float64 {
	if len(strength) == 0 || hopDuration <= 0 {
		return 0
	}
	peaks := od.Peaks(strength, common.Mean(strength))
	return float64(len(peaks)) / (float64(len(strength)) * hopDuration)
}
