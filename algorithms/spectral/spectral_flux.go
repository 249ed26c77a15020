package spectral

// SpectralFlux computes spectral flux (measure of spectral change)
type SpectralFlux struct{}

// NewSpectralFlux creates a new spectral flux calculator
func NewSpectralFlux() *SpectralFlux {
	return &SpectralFlux{}
}

// Compute returns the positive L1 flux of each frame against its predecessor:
// the sum over bins of max(0, |X_t| - |X_t-1|). The result has one value per
// frame and frame 0 is always 0.
func (sf *SpectralFlux) Compute(spec *Spectrogram) []float64 {
	if spec == nil || len(spec.Frames) == 0 {
		return []float64{}
	}

	flux := make([]float64, len(spec.Frames))

	for t := 1; t < len(spec.Frames); t++ {
		prev := spec.Frames[t-1].Magnitude
		cur := spec.Frames[t].Magnitude

		sum := 0.0
		for f := range cur {
			// Only positive changes (energy increases)
			if diff := cur[f] - prev[f]; diff > 0 {
				sum += diff
			}
		}
		flux[t] = sum
	}

	return flux
}
