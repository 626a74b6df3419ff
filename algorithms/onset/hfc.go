package onset

import (
	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
)

// HFCDetector fires on high-frequency content (Masri's bin-weighted
// energy sum). Percussive attacks dump broadband energy into the upper
// bins, so HFC jumps on hits that barely move the total level.
type HFCDetector struct {
	cfg     DetectorConfig
	tracker *thresholdTracker
}

// NewHFCDetector creates a high-frequency content detector.
func NewHFCDetector(cfg DetectorConfig) *HFCDetector {
	return &HFCDetector{
		cfg:     cfg,
		tracker: newThresholdTracker(cfg.Threshold),
	}
}

func (d *HFCDetector) Type() DetectorType {
	return TypeHFC
}

func (d *HFCDetector) Process(f *spectral.Frame) Result {
	if !f.Valid {
		return none()
	}

	hfc := 0.0
	for k, mag := range f.Magnitudes {
		hfc += float64(k) * mag * mag
	}
	hfc /= float64(max(len(f.Magnitudes), 1))

	return d.tracker.evaluate(hfc)
}

func (d *HFCDetector) Reset() {
	d.tracker.reset()
}
