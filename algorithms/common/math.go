package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic numeric helpers shared by the analysis stages, backed by gonum

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance of a slice using gonum
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.Variance(data, nil)
}

// Sum returns the sum of the slice
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Sum(data)
}

// ArgMax returns the index of the largest value, the first one on ties.
// It returns -1 for an empty slice.
func ArgMax(data []float64) int {
	if len(data) == 0 {
		return -1
	}
	return floats.MaxIdx(data)
}

// IsConstant reports whether every value in the slice is equal
func IsConstant(data []float64) bool {
	if len(data) == 0 {
		return true
	}
	return floats.Max(data) == floats.Min(data)
}

// CenteredMovingAverage smooths data with a window centred on each sample.
// Windows are truncated at the edges and averaged over the samples they cover,
// so the output has the same length as the input.
func CenteredMovingAverage(data []float64, windowSize int) []float64 {
	result := make([]float64, len(data))
	if windowSize <= 1 {
		copy(result, data)
		return result
	}

	before := (windowSize - 1) / 2
	after := windowSize - 1 - before

	// prefix sums keep this linear in len(data)
	prefix := make([]float64, len(data)+1)
	for i, v := range data {
		prefix[i+1] = prefix[i] + v
	}

	for i := range data {
		lo := max(i-before, 0)
		hi := min(i+after, len(data)-1)
		result[i] = (prefix[hi+1] - prefix[lo]) / float64(hi-lo+1)
	}

	return result
}

// IsLocalPeak reports whether data[i] is at least as large as both neighbours
// and strictly larger than one of them. Edge samples compare against their
// single neighbour.
func IsLocalPeak(data []float64, i int) bool {
	if i < 0 || i >= len(data) {
		return false
	}

	left := math.Inf(-1)
	if i > 0 {
		left = data[i-1]
	}
	right := math.Inf(-1)
	if i < len(data)-1 {
		right = data[i+1]
	}

	v := data[i]
	return v >= left && v >= right && (v > left || v > right)
}

// ParabolicPeak refines the position of a peak at index i by fitting a
// parabola through it and its neighbours. It returns the fractional offset in
// [-0.5, 0.5] to add to i.
func ParabolicPeak(data []float64, i int) float64 {
	if i <= 0 || i >= len(data)-1 {
		return 0
	}

	a, b, c := data[i-1], data[i], data[i+1]
	denom := a - 2*b + c
	if denom == 0 {
		return 0
	}

	return Clamp(0.5*(a-c)/denom, -0.5, 0.5)
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
