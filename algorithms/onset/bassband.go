package onset

import (
	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
)

// BassBandDetector fires on positive energy jumps in the low band.
// Kick drums and bass notes carry most of the beat in popular music,
// which is why this member gets the largest default fusion weight.
type BassBandDetector struct {
	cfg      DetectorConfig
	tracker  *thresholdTracker
	prevBass float64
	primed   bool
}

// NewBassBandDetector creates a bass band onset detector.
func NewBassBandDetector(cfg DetectorConfig) *BassBandDetector {
	return &BassBandDetector{
		cfg:     cfg,
		tracker: newThresholdTracker(cfg.Threshold),
	}
}

func (d *BassBandDetector) Type() DetectorType {
	return TypeBassBand
}

func (d *BassBandDetector) Process(f *spectral.Frame) Result {
	if !f.Valid {
		return none()
	}

	rise := f.Bass - d.prevBass
	d.prevBass = f.Bass

	if !d.primed {
		d.primed = true
		return none()
	}
	if rise <= 0 {
		d.tracker.evaluate(0.0)
		return Result{}
	}

	return d.tracker.evaluate(rise)
}

func (d *BassBandDetector) Reset() {
	d.tracker.reset()
	d.prevBass = 0.0
	d.primed = false
}
