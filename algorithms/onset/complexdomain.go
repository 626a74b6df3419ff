package onset

import (
	"math"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
)

// ComplexDomainDetector fires on deviation from the phase-predicted
// spectrum. Each bin's expected value extrapolates the previous two
// phases at the previous magnitude; the summed distance between the
// actual and expected complex bins spikes on both percussive and soft
// (pitched) onsets, which pure magnitude flux misses.
type ComplexDomainDetector struct {
	cfg       DetectorConfig
	tracker   *thresholdTracker
	prevMags  []float64
	prevPhase []float64
	prevPrev  []float64
	frames    int
}

// NewComplexDomainDetector creates a complex-domain detector for
// numBins bins.
func NewComplexDomainDetector(cfg DetectorConfig, numBins int) *ComplexDomainDetector {
	return &ComplexDomainDetector{
		cfg:       cfg,
		tracker:   newThresholdTracker(cfg.Threshold),
		prevMags:  make([]float64, numBins),
		prevPhase: make([]float64, numBins),
		prevPrev:  make([]float64, numBins),
	}
}

func (d *ComplexDomainDetector) Type() DetectorType {
	return TypeComplexDomain
}

func (d *ComplexDomainDetector) Process(f *spectral.Frame) Result {
	if !f.Valid {
		return none()
	}

	n := min(len(f.Magnitudes), len(d.prevMags))
	deviation := 0.0
	for k := 0; k < n; k++ {
		// Phase advance predicted by constant bin frequency
		expected := 2.0*d.prevPhase[k] - d.prevPrev[k]
		dphi := f.Phases[k] - expected

		mag := f.Magnitudes[k]
		prev := d.prevMags[k]
		// |X - X_expected| via the law of cosines
		dist := mag*mag + prev*prev - 2.0*mag*prev*math.Cos(dphi)
		if dist > 0 {
			deviation += math.Sqrt(dist)
		}

		d.prevPrev[k] = d.prevPhase[k]
		d.prevPhase[k] = f.Phases[k]
		d.prevMags[k] = mag
	}
	deviation /= float64(max(n, 1))

	d.frames++
	if d.frames < 3 {
		// Need two full frames of phase history
		return none()
	}

	return d.tracker.evaluate(deviation)
}

func (d *ComplexDomainDetector) Reset() {
	d.tracker.reset()
	d.frames = 0
	for i := range d.prevMags {
		d.prevMags[i] = 0.0
		d.prevPhase[i] = 0.0
		d.prevPrev[i] = 0.0
	}
}
