// Package onset turns spectral frames into transient events: a scalar
// onset strength signal for periodicity analysis, and an ensemble of
// independently biased detectors fused into one confidence-weighted
// event per frame.
package onset

import (
	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
)

// DetectorType identifies one member of the closed detector set.
type DetectorType int

const (
	TypeAmplitude DetectorType = iota
	TypeFlux
	TypeHFC
	TypeBassBand
	TypeComplexDomain
	TypeNovelty

	numDetectorTypes
)

func (t DetectorType) String() string {
	switch t {
	case TypeAmplitude:
		return "amplitude"
	case TypeFlux:
		return "flux"
	case TypeHFC:
		return "hfc"
	case TypeBassBand:
		return "bass_band"
	case TypeComplexDomain:
		return "complex_domain"
	case TypeNovelty:
		return "novelty"
	default:
		return "unknown"
	}
}

// Result is one detector's verdict for a single frame.
type Result struct {
	Fired      bool
	Strength   float64 // in [0, 1]
	Confidence float64 // in [0, 1]
}

// none returns an empty result.
func none() Result {
	return Result{}
}

// DetectorConfig holds the per-detector tuning exposed to callers.
type DetectorConfig struct {
	Enabled   bool    `json:"enabled"`
	Weight    float64 `json:"weight"`    // contribution to the fused strength, in [0, 1]
	Threshold float64 `json:"threshold"` // ratio over the adaptive floor required to fire
}

// Detector is the capability interface every ensemble member
// implements. Detectors own their internal state exclusively and never
// read another detector's state.
type Detector interface {
	Type() DetectorType
	Process(f *spectral.Frame) Result
	Reset()
}

// coldStartMinimum keeps ratio denominators sane before the adaptive
// floor has seen enough signal.
const coldStartMinimum = 0.01

// thresholdTracker converts a raw detection-function value into a
// Result by comparing it against a median of its own recent history.
// All detectors share this mechanism; only the detection function
// differs.
type thresholdTracker struct {
	history   *common.MedianRing
	threshold float64
}

func newThresholdTracker(threshold float64) *thresholdTracker {
	return &thresholdTracker{
		history:   common.NewMedianRing(16),
		threshold: threshold,
	}
}

// evaluate compares value against threshold x median(history), then
// records the value.
func (tt *thresholdTracker) evaluate(value float64) Result {
	floor := tt.history.Median()
	if floor < coldStartMinimum {
		floor = coldStartMinimum
	}
	tt.history.Push(value)

	if value <= 1e-6 {
		return Result{}
	}
	return ratioResult(value/floor, tt.threshold)
}

// ratioResult maps a detection ratio (value over adaptive floor) and a
// firing threshold to a Result. Strength reaches 0.5 at the firing
// point and 1.0 at twice the firing point, so fused strengths stay
// comparable across detectors with very different raw scales.
func ratioResult(ratio, threshold float64) Result {
	th := threshold
	if th <= 0 {
		th = 1.0
	}

	r := Result{
		Strength: common.Clamp01(ratio / (2.0 * th)),
	}
	if ratio >= th {
		r.Fired = true
		r.Confidence = common.Clamp01(0.5 + 0.5*(ratio-th)/th)
	} else {
		r.Confidence = common.Clamp01(0.5 * ratio / th)
	}
	return r
}

func (tt *thresholdTracker) reset() {
	tt.history.Reset()
}
