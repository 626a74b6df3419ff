package onset

import (
	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
)

// AmplitudeDetector fires on broadband level spikes: a fast envelope
// of the block level pulling away from a slow one. It is the bluntest
// member of the ensemble but the hardest to fool with tonal content.
type AmplitudeDetector struct {
	cfg       DetectorConfig
	fast      float64
	slow      float64
	fastCoeff float64
	slowCoeff float64
}

// NewAmplitudeDetector creates an amplitude spike detector running at
// the given frame rate.
func NewAmplitudeDetector(cfg DetectorConfig, frameRate float64) *AmplitudeDetector {
	return &AmplitudeDetector{
		cfg:       cfg,
		fastCoeff: common.SmoothingCoeff(0.015, frameRate),
		slowCoeff: common.SmoothingCoeff(1.0, frameRate),
	}
}

func (d *AmplitudeDetector) Type() DetectorType {
	return TypeAmplitude
}

func (d *AmplitudeDetector) Process(f *spectral.Frame) Result {
	if !f.Valid {
		return none()
	}

	d.fast += d.fastCoeff * (f.Level - d.fast)
	d.slow += d.slowCoeff * (f.Level - d.slow)

	floor := d.slow
	if floor < coldStartMinimum {
		floor = coldStartMinimum
	}

	excess := d.fast - d.slow
	if excess <= 0 {
		return Result{Confidence: 0.0}
	}

	return ratioResult(excess/floor, d.cfg.Threshold)
}

func (d *AmplitudeDetector) Reset() {
	d.fast = 0.0
	d.slow = 0.0
}
