package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

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

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return math.Sqrt(Variance(data))
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sumSquares := 0.0
	for _, val := range data {
		sumSquares += val * val
	}

	return math.Sqrt(sumSquares / float64(len(data)))
}

// MinMaxNormalize normalizes data in place to the [0, 1] range.
// Constant data normalizes to all zeros.
func MinMaxNormalize(data []float64) {
	if len(data) == 0 {
		return
	}

	lo := floats.Min(data)
	hi := floats.Max(data)

	if math.Abs(hi-lo) < 1e-10 {
		for i := range data {
			data[i] = 0.0
		}
		return
	}

	for i, val := range data {
		data[i] = (val - lo) / (hi - lo)
	}
}

// MovingAverage smooths data with a trailing window of the given size,
// writing into dst (which must be at least as long as data).
func MovingAverage(data, dst []float64, windowSize int) {
	if windowSize <= 1 {
		copy(dst, data)
		return
	}

	sum := 0.0
	for i := range data {
		sum += data[i]
		if i >= windowSize {
			sum -= data[i-windowSize]
			dst[i] = sum / float64(windowSize)
		} else {
			dst[i] = sum / float64(i+1)
		}
	}
}

// Clamp constrains a value to a range
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Clamp01 constrains a value to [0, 1] and maps NaN to 0
func Clamp01(value float64) float64 {
	if math.IsNaN(value) {
		return 0.0
	}
	return Clamp(value, 0.0, 1.0)
}

// Lerp performs linear interpolation between two values
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// SmoothingCoeff converts a time constant (seconds) at a given update
// rate (Hz) into a one-pole smoothing coefficient in (0, 1].
func SmoothingCoeff(timeConstant, rate float64) float64 {
	if timeConstant <= 0 || rate <= 0 {
		return 1.0
	}
	return 1.0 - math.Exp(-1.0/(timeConstant*rate))
}

// QuadraticPeakInterp refines a discrete peak position using the
// neighboring values. Returns the fractional offset in [-0.5, 0.5]
// relative to the center sample.
func QuadraticPeakInterp(left, center, right float64) float64 {
	denom := left - 2.0*center + right
	if math.Abs(denom) < 1e-12 {
		return 0.0
	}
	offset := 0.5 * (left - right) / denom
	return Clamp(offset, -0.5, 0.5)
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
