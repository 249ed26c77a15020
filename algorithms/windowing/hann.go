// Package windowing provides the tapering windows used by the analysis stages.
package windowing

import "math"

// Hann is a precomputed periodic raised-cosine window.
// Shifted copies at a hop of size/4 overlap-add to a constant, which is what
// the STFT frames rely on.
type Hann struct {
	coefficients []float64
}

// NewHann creates a periodic Hann window of the given length
func NewHann(size int) *Hann {
	h := &Hann{coefficients: make([]float64, max(size, 0))}
	for i := range h.coefficients {
		h.coefficients[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(size))
	}
	return h
}

// Frame writes the windowed samples of src into the first Size() elements of
// dst. When src is shorter the rest of the frame is zeroed, which is how the
// last frames of a signal are padded. Frame panics if dst is shorter than the
// window.
func (h *Hann) Frame(dst, src []float64) {
	dst = dst[:len(h.coefficients)]
	if len(src) > len(dst) {
		src = src[:len(dst)]
	}

	for i, v := range src {
		dst[i] = v * h.coefficients[i]
	}
	clear(dst[len(src):])
}

// Coefficients returns a copy of the window
func (h *Hann) Coefficients() []float64 {
	return append([]float64(nil), h.coefficients...)
}

// Size returns the window length
func (h *Hann) Size() int {
	return len(h.coefficients)
}
