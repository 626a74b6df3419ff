// Package filters holds the small time-domain filters applied to PCM
// before spectral analysis.
package filters

import (
	"math"
)

// DCBlocker is a first-order high-pass filter (y[n] = x[n] - x[n-1] +
// R*y[n-1]) removing the DC offset cheap microphone capture paths
// commonly carry. An offset would otherwise leak into the block RMS
// and bias every level-based detector behind the front-end.
type DCBlocker struct {
	pole float64
	x1   float64
	y1   float64
}

// NewDCBlocker creates a blocker with roughly the given -3 dB cutoff.
// The pole is R = 1 - 2*pi*fc/fs, clamped into (0, 1).
func NewDCBlocker(sampleRate int, cutoffHz float64) *DCBlocker {
	pole := 1.0 - 2.0*math.Pi*cutoffHz/float64(sampleRate)
	if pole <= 0 || pole >= 1 {
		pole = 0.995
	}
	return &DCBlocker{pole: pole}
}

// Process filters the block in place.
func (d *DCBlocker) Process(samples []float64) {
	x1, y1 := d.x1, d.y1
	for i, x := range samples {
		y := x - x1 + d.pole*y1
		samples[i] = y
		x1, y1 = x, y
	}
	d.x1, d.y1 = x1, y1
}

// Reset clears the filter state.
func (d *DCBlocker) Reset() {
	d.x1 = 0.0
	d.y1 = 0.0
}
