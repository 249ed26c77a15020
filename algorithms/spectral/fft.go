package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/RyanBlaney/sonido-studio/algorithms/common"
)

// FFT provides arbitrary-length Fast Fourier Transform functionality
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes Fast Fourier Transform using mjibson/go-dsp
// Takes []float64 input and returns []complex128 output
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes efficiently, including non-power-of-2
	return fft.FFTReal(x)
}

// ComputeInverseReal computes inverse FFT and returns real part only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))

	for i, val := range result {
		realResult[i] = real(val)
	}

	return realResult
}

// Autocorrelate returns the unnormalised linear autocorrelation of x for lags
// 0..len(x)-1. The input is zero padded to at least twice its length so the
// circular correlation of the FFT does not wrap.
func (f *FFT) Autocorrelate(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return []float64{}
	}

	padded := make([]float64, common.NextPowerOfTwo(2*n))
	copy(padded, x)

	spectrum := f.Compute(padded)
	for i, c := range spectrum {
		spectrum[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}

	acf := f.ComputeInverseReal(spectrum)
	return acf[:n]
}

// RealFFT is a fixed-size real transform that reuses its plan and buffers.
// It is not safe for concurrent use; each STFT worker owns one.
type RealFFT struct {
	size   int
	plan   *fourier.FFT
	coeffs []complex128
}

// NewRealFFT creates a real FFT for frames of the given size
func NewRealFFT(size int) *RealFFT {
	return &RealFFT{
		size:   size,
		plan:   fourier.NewFFT(size),
		coeffs: make([]complex128, size/2+1),
	}
}

// Magnitudes writes |X[k]| for k in 0..size/2 into dst
func (r *RealFFT) Magnitudes(frame []float64, dst []float64) {
	r.coeffs = r.plan.Coefficients(r.coeffs, frame)
	for k, c := range r.coeffs {
		dst[k] = cmplx.Abs(c)
	}
}

// Size returns the transform length
func (r *RealFFT) Size() int {
	return r.size
}
