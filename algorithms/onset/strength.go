package onset

import (
	"math"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
)

// StrengthConfig tunes the onset strength signal.
type StrengthConfig struct {
	BassWeight float64 `json:"bass_weight"`
	MidWeight  float64 `json:"mid_weight"`
	HighWeight float64 `json:"high_weight"` // kept low to suppress cymbal wash

	Gamma           float64 `json:"gamma"`             // log compression gain
	MaxFilterRadius int     `json:"max_filter_radius"` // bins of vibrato tolerance
	OnsetDelta      float64 `json:"onset_delta"`       // minimum flux rise to pass
	SmoothWidth     int     `json:"smooth_width"`      // trailing moving average, 1 = off
}

// DefaultStrengthConfig returns the standard onset strength tuning.
func DefaultStrengthConfig() StrengthConfig {
	return StrengthConfig{
		BassWeight:      1.6,
		MidWeight:       1.0,
		HighWeight:      0.4,
		Gamma:           10.0,
		MaxFilterRadius: 1,
		OnsetDelta:      0.0,
		SmoothWidth:     1,
	}
}

// StrengthGenerator reduces a spectral frame to one non-negative
// scalar: band-weighted, log-compressed, half-wave-rectified spectral
// flux against a max-filtered previous frame. The max filter tolerates
// small bin shifts from vibrato; the delta gate rejects sustained
// content whose flux never rises.
type StrengthGenerator struct {
	cfg      StrengthConfig
	logNorm  float64
	weights  []float64 // per-bin band weight
	prev     []float64 // previous compressed magnitudes
	scratch  []float64 // max-filtered previous frame
	smooth   *common.Ring
	prevFlux float64
	primed   bool
}

// NewStrengthGenerator creates a generator for numBins bins with the
// given coarse band edges (same bin indexing as the front-end).
func NewStrengthGenerator(cfg StrengthConfig, numBins, bassHighBin, midHighBin int) *StrengthGenerator {
	sg := &StrengthGenerator{
		cfg:     cfg,
		logNorm: math.Log(1.0 + math.Max(cfg.Gamma, 1e-3)),
		weights: make([]float64, numBins),
		prev:    make([]float64, numBins),
		scratch: make([]float64, numBins),
		smooth:  common.NewRing(max(cfg.SmoothWidth, 1)),
	}
	for k := 0; k < numBins; k++ {
		switch {
		case k <= bassHighBin:
			sg.weights[k] = cfg.BassWeight
		case k <= midHighBin:
			sg.weights[k] = cfg.MidWeight
		default:
			sg.weights[k] = cfg.HighWeight
		}
	}
	return sg
}

// Process consumes a spectral frame and returns the onset strength
// sample for this frame. Invalid frames yield 0.
func (sg *StrengthGenerator) Process(f *spectral.Frame) float64 {
	if !f.Valid {
		return 0.0
	}

	n := min(len(f.Magnitudes), len(sg.prev))
	r := sg.cfg.MaxFilterRadius

	// Reference spectrum: max filter over the previous compressed frame
	for k := 0; k < n; k++ {
		ref := sg.prev[k]
		for j := max(k-r, 0); j <= min(k+r, n-1); j++ {
			if sg.prev[j] > ref {
				ref = sg.prev[j]
			}
		}
		sg.scratch[k] = ref
	}

	flux := 0.0
	for k := 0; k < n; k++ {
		c := math.Log(1.0+sg.cfg.Gamma*f.Magnitudes[k]) / sg.logNorm
		diff := c - sg.scratch[k]
		if diff > 0 {
			flux += sg.weights[k] * diff
		}
		sg.prev[k] = c
	}
	flux /= float64(max(n, 1))

	if !sg.primed {
		sg.primed = true
		sg.prevFlux = flux
		return 0.0
	}

	rise := flux - sg.prevFlux
	sg.prevFlux = flux

	oss := flux
	if rise < sg.cfg.OnsetDelta {
		oss = 0.0
	}

	if sg.cfg.SmoothWidth > 1 {
		sg.smooth.Push(oss)
		sum := 0.0
		for i := 0; i < sg.smooth.Count(); i++ {
			sum += sg.smooth.Recent(i)
		}
		oss = sum / float64(sg.smooth.Count())
	}

	return oss
}

// Reset clears the spectral history.
func (sg *StrengthGenerator) Reset() {
	sg.primed = false
	sg.prevFlux = 0.0
	sg.smooth.Clear()
	for i := range sg.prev {
		sg.prev[i] = 0.0
		sg.scratch[i] = 0.0
	}
}
