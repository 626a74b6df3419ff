package onset

import (
	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
)

// FluxDetector fires on half-wave-rectified spectral flux over the
// whitened magnitude spectrum. Unlike the band-weighted onset strength
// signal it treats all bins equally, which gives it a different bias
// than the bass-band and HFC members.
type FluxDetector struct {
	cfg      DetectorConfig
	tracker  *thresholdTracker
	prevMags []float64
	primed   bool
}

// NewFluxDetector creates a spectral flux detector for numBins bins.
func NewFluxDetector(cfg DetectorConfig, numBins int) *FluxDetector {
	return &FluxDetector{
		cfg:      cfg,
		tracker:  newThresholdTracker(cfg.Threshold),
		prevMags: make([]float64, numBins),
	}
}

func (d *FluxDetector) Type() DetectorType {
	return TypeFlux
}

func (d *FluxDetector) Process(f *spectral.Frame) Result {
	if !f.Valid {
		return none()
	}

	n := min(len(f.Magnitudes), len(d.prevMags))
	flux := 0.0
	for k := 0; k < n; k++ {
		diff := f.Magnitudes[k] - d.prevMags[k]
		if diff > 0 {
			flux += diff
		}
		d.prevMags[k] = f.Magnitudes[k]
	}
	flux /= float64(max(n, 1))

	if !d.primed {
		// First frame differences against zeros are meaningless
		d.primed = true
		return none()
	}

	return d.tracker.evaluate(flux)
}

func (d *FluxDetector) Reset() {
	d.tracker.reset()
	d.primed = false
	for i := range d.prevMags {
		d.prevMags[i] = 0.0
	}
}
