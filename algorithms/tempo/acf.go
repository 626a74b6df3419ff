// Package tempo estimates the dominant beat period of the onset
// strength signal. A throttled pass fuses several independent
// periodicity observations (autocorrelation, resonant comb filters, a
// Fourier tempogram and inter-onset intervals) into a Bayesian
// posterior over discretized BPM bins.
package tempo

import (
	"github.com/goccmack/godsp/peaks"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
)

// Autocorrelator computes the mean-subtracted, energy-normalized
// autocorrelation of an onset strength window, with an inverse-lag
// division that keeps the true period dominant over its multiples
// (which would otherwise read as half tempo).
type Autocorrelator struct {
	scratch []float64 // mean-subtracted input
	acf     []float64 // indexed by lag
	maxLag  int
}

// NewAutocorrelator creates an autocorrelator for windows up to
// windowLen samples and lags up to maxLag.
func NewAutocorrelator(windowLen, maxLag int) *Autocorrelator {
	return &Autocorrelator{
		scratch: make([]float64, windowLen),
		acf:     make([]float64, maxLag+1),
		maxLag:  maxLag,
	}
}

// Compute fills the internal ACF for lags in [minLag, maxLag] and
// returns it along with the strongest plain normalized correlation
// (before inverse-lag weighting), which doubles as a periodicity
// strength measure. The returned slice is owned by the Autocorrelator.
func (a *Autocorrelator) Compute(oss []float64, minLag, maxLag int) ([]float64, float64) {
	n := min(len(oss), len(a.scratch))
	maxLag = min(maxLag, a.maxLag)
	for lag := range a.acf {
		a.acf[lag] = 0.0
	}
	if n < minLag*2 || minLag < 1 || maxLag <= minLag {
		return a.acf, 0.0
	}

	mean := common.Mean(oss[:n])
	energy := 0.0
	for i := 0; i < n; i++ {
		a.scratch[i] = oss[i] - mean
		energy += a.scratch[i] * a.scratch[i]
	}
	energy /= float64(n)
	if energy < 1e-9 {
		// Silent or constant window, nothing to correlate
		return a.acf, 0.0
	}

	normPeak := 0.0
	for lag := minLag; lag <= maxLag && lag < n; lag++ {
		sum := 0.0
		for i := 0; i+lag < n; i++ {
			sum += a.scratch[i] * a.scratch[i+lag]
		}
		norm := sum / float64(n-lag) / energy
		if norm > normPeak {
			normPeak = norm
		}
		if norm < 0 {
			norm = 0.0
		}
		a.acf[lag] = norm / float64(lag)
	}

	return a.acf, normPeak
}

// At linearly interpolates the last computed ACF at a fractional lag.
// Out-of-range lags return 0.
func (a *Autocorrelator) At(lag float64) float64 {
	if lag < 0 || lag >= float64(len(a.acf)-1) {
		return 0.0
	}
	i := int(lag)
	frac := lag - float64(i)
	return common.Lerp(a.acf[i], a.acf[i+1], frac)
}

// Peaks returns candidate lags: local maxima of the ACF within
// [minLag, maxLag] separated by at least minSep, keeping only peaks
// above relHeight times the strongest one.
func (a *Autocorrelator) Peaks(minLag, maxLag, minSep int, relHeight float64) []int {
	maxLag = min(maxLag, a.maxLag)
	if maxLag <= minLag {
		return nil
	}

	window := a.acf[minLag : maxLag+1]
	candidates := peaks.Get(window, minSep)
	if len(candidates) == 0 {
		return nil
	}

	best := 0.0
	for _, idx := range candidates {
		if window[idx] > best {
			best = window[idx]
		}
	}

	var out []int
	for _, idx := range candidates {
		if window[idx] >= relHeight*best {
			out = append(out, idx+minLag)
		}
	}
	return out
}
