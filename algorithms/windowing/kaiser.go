package windowing

import (
	"math"
)

// Kaiser is a continuous Kaiser window used to taper interpolation kernels.
// Unlike Hann it is evaluated at arbitrary positions rather than on a fixed grid.
type Kaiser struct {
	beta   float64
	i0Beta float64
}

// NewKaiser creates a Kaiser window with the given shape parameter.
// beta around 8.6 gives roughly 90 dB of stop-band attenuation.
func NewKaiser(beta float64) *Kaiser {
	return &Kaiser{
		beta:   beta,
		i0Beta: besselI0(beta),
	}
}

// At evaluates the window at x in [-1, 1]; it is zero outside that interval
func (k *Kaiser) At(x float64) float64 {
	if x < -1 || x > 1 {
		return 0
	}
	return besselI0(k.beta*math.Sqrt(1-x*x)) / k.i0Beta
}

// Coefficients samples the window on a symmetric grid of the given size
func (k *Kaiser) Coefficients(size int) []float64 {
	if size <= 0 {
		return []float64{}
	}
	if size == 1 {
		return []float64{1}
	}

	coeffs := make([]float64, size)
	for i := range size {
		coeffs[i] = k.At(2.0*float64(i)/float64(size-1) - 1.0)
	}
	return coeffs
}

// Beta returns the Kaiser shape parameter
func (k *Kaiser) Beta() float64 {
	return k.beta
}

// besselI0 computes the zero-order modified Bessel function of the first kind
// by its power series
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0

	for i := 1; i < 64; i++ {
		half := x / (2.0 * float64(i))
		term *= half * half
		sum += term

		if term < 1e-14*sum {
			break
		}
	}

	return sum
}
