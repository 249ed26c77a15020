package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-studio/algorithms/common"
	"github.com/RyanBlaney/sonido-studio/algorithms/spectral"
	"github.com/RyanBlaney/sonido-studio/audioerr"
)

// TempoEstimate is a global tempo read from the onset autocorrelation
type TempoEstimate struct {
	BPM        float64 `json:"bpm"`
	Period     float64 `json:"period"`     // inter-beat interval in frames, fractional
	Confidence float64 `json:"confidence"` // autocorrelation at the period over lag 0
}

// TempoEstimation estimates a single global tempo from an onset envelope
type TempoEstimation struct {
	minBPM           float64
	maxBPM           float64
	octaveCorrection float64
	fft              *spectral.FFT
}

// NewTempoEstimation creates a new tempo estimator for the given BPM range.
// octaveCorrection is the fraction of the peak the half-period lag must reach
// to be preferred; 0 disables the check.
func NewTempoEstimation(minBPM, maxBPM, octaveCorrection float64) *TempoEstimation {
	return &TempoEstimation{
		minBPM:           minBPM,
		maxBPM:           maxBPM,
		octaveCorrection: octaveCorrection,
		fft:              spectral.NewFFT(),
	}
}

// LagRange returns the inclusive autocorrelation lag range in frames covering
// [minBPM, maxBPM] for the given hop duration
func (te *TempoEstimation) LagRange(hopDuration float64) (int, int) {
	minLag := int(math.Ceil(60.0/(te.maxBPM*hopDuration) - 1e-9))
	maxLag := int(math.Floor(60.0/(te.minBPM*hopDuration) + 1e-9))
	return max(minLag, 1), maxLag
}

// Estimate autocorrelates the mean-removed envelope and converts the
// strongest lag in range to BPM. An envelope with no positive autocorrelation
// in range, such as a lone transient, has no tempo.
func (te *TempoEstimation) Estimate(onset []float64, hopDuration float64) (TempoEstimate, error) {
	const op = "temporal.TempoEstimation.Estimate"

	if hopDuration <= 0 {
		return TempoEstimate{}, audioerr.New(audioerr.KindInvalidArgument, op, "hop duration must be positive: %g", hopDuration)
	}
	if common.IsConstant(onset) {
		return TempoEstimate{}, audioerr.New(audioerr.KindInsufficientSignal, op, "tempo undefined: no onsets")
	}

	minLag, maxLag := te.LagRange(hopDuration)
	maxLag = min(maxLag, len(onset)-1)
	if minLag > maxLag {
		return TempoEstimate{}, audioerr.New(audioerr.KindInsufficientSignal, op,
			"tempo undefined: %d frames cannot cover lags %d..%d", len(onset), minLag, maxLag)
	}

	mean := common.Mean(onset)
	centred := make([]float64, len(onset))
	for i, v := range onset {
		centred[i] = v - mean
	}

	acf := te.fft.Autocorrelate(centred)

	lag := minLag + common.ArgMax(acf[minLag:maxLag+1])
	if acf[lag] <= 0 {
		return TempoEstimate{}, audioerr.New(audioerr.KindInsufficientSignal, op,
			"tempo undefined: onsets are not periodic within %g..%g BPM", te.minBPM, te.maxBPM)
	}
	period := float64(lag) + common.ParabolicPeak(acf, lag)

	if half, ok := te.halfPeriod(acf, lag, minLag); ok {
		lag = half
		period = float64(half) + common.ParabolicPeak(acf, half)
	}

	bpm := common.Clamp(60.0/(period*hopDuration), te.minBPM, te.maxBPM)

	confidence := 0.0
	if acf[0] > 0 {
		confidence = common.Clamp(acf[lag]/acf[0], 0, 1)
	}

	return TempoEstimate{
		BPM:        bpm,
		Period:     60.0 / (bpm * hopDuration),
		Confidence: confidence,
	}, nil
}

// halfPeriod returns the strongest lag next to lag/2 when its autocorrelation
// reaches octaveCorrection of the peak
func (te *TempoEstimation) halfPeriod(acf []float64, lag, minLag int) (int, bool) {
	if te.octaveCorrection <= 0 || acf[lag] <= 0 {
		return 0, false
	}

	centre := int(math.Round(float64(lag) / 2))
	best, bestVal := -1, math.Inf(-1)
	for l := centre - 1; l <= centre+1; l++ {
		if l < minLag || l >= lag {
			continue
		}
		if acf[l] > bestVal {
			best, bestVal = l, acf[l]
		}
	}

	if best < 0 || bestVal < te.octaveCorrection*acf[lag] {
		return 0, false
	}
	return best, true
}

// tempoCategories are the upper BPM bounds of each category, ascending
var tempoCategories = []struct {
	below float64
	name  string
}{
	{60, "very_slow"},
	{90, "slow"},
	{120, "moderate"},
	{150, "fast"},
}

// ClassifyTempoCategory names the tempo band a BPM value falls in
func (te *TempoEstimation) ClassifyTempoCategory(bpm float64) string {
	for _, c := range tempoCategories {
		if bpm < c.below {
			return c.name
		}
	}
	return "very_fast"
}
