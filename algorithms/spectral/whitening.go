package spectral

// WhiteningConfig controls per-bin adaptive whitening.
type WhiteningConfig struct {
	Enabled bool    `json:"enabled"`
	Decay   float64 `json:"decay"` // per-frame decay of the running maximum
	Floor   float64 `json:"floor"` // minimum divisor, avoids amplifying silence
}

// DefaultWhiteningConfig returns the standard whitening constants.
func DefaultWhiteningConfig() WhiteningConfig {
	return WhiteningConfig{
		Enabled: true,
		Decay:   0.97,
		Floor:   0.01,
	}
}

// Whitener normalizes each spectrum bin by its own slowly decaying
// running maximum. Sustained tonal content flattens out while fresh
// energy in any bin stands at full scale, which is exactly the contrast
// the flux-based detectors need.
type Whitener struct {
	cfg        WhiteningConfig
	runningMax []float64
}

// NewWhitener creates a whitener for numBins spectrum bins.
func NewWhitener(cfg WhiteningConfig, numBins int) *Whitener {
	return &Whitener{
		cfg:        cfg,
		runningMax: make([]float64, numBins),
	}
}

// Process whitens magnitudes in place.
func (w *Whitener) Process(magnitudes []float64) {
	if !w.cfg.Enabled {
		return
	}

	n := min(len(magnitudes), len(w.runningMax))
	for i := 0; i < n; i++ {
		w.runningMax[i] *= w.cfg.Decay
		if magnitudes[i] > w.runningMax[i] {
			w.runningMax[i] = magnitudes[i]
		}
		denom := w.runningMax[i]
		if denom < w.cfg.Floor {
			denom = w.cfg.Floor
		}
		magnitudes[i] /= denom
	}
}

// Reset clears the per-bin running maxima.
func (w *Whitener) Reset() {
	for i := range w.runningMax {
		w.runningMax[i] = 0.0
	}
}
