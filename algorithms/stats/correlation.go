package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-studio/algorithms/common"
)

// ErrZeroVariance is returned when an input has no variance and the
// correlation is undefined
var ErrZeroVariance = errors.New("zero variance")

// Pearson returns the Pearson correlation coefficient of x and y using gonum.
// The result is symmetric in its arguments and clamped to [-1, 1].
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(x), len(y))
	}
	if len(x) < 2 {
		return 0, fmt.Errorf("need at least 2 values, got %d", len(x))
	}
	if common.IsConstant(x) || common.IsConstant(y) {
		return 0, ErrZeroVariance
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, ErrZeroVariance
	}

	return clampCorrelation(r), nil
}

// clampCorrelation ensures correlation is in valid range [-1, 1]
func clampCorrelation(correlation float64) float64 {
	if correlation > 1.0 {
		return 1.0
	}
	if correlation < -1.0 {
		return -1.0
	}
	return correlation
}
