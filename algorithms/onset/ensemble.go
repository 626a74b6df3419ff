package onset

import (
	"math"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
)

// EnsembleConfig tunes the detector fusion stage. Each member is
// independently tunable and independently disable-able; a solo
// configuration with exactly one member enabled is valid.
type EnsembleConfig struct {
	Amplitude DetectorConfig `json:"amplitude"`
	Flux      DetectorConfig `json:"flux"`
	HFC       DetectorConfig `json:"hfc"`
	BassBand  DetectorConfig `json:"bass_band"`
	Complex   DetectorConfig `json:"complex_domain"`
	Novelty   DetectorConfig `json:"novelty"`

	// AgreementBoosts is indexed by the number of members that fired
	// together; entries past the end clamp to the last value. A lone
	// detector is suppressed, two or more agreeing are boosted.
	AgreementBoosts []float64 `json:"agreement_boosts"`

	CooldownMs       float64 `json:"cooldown_ms"`
	AdaptiveCooldown bool    `json:"adaptive_cooldown"` // track a fraction of the beat period
	MinConfidence    float64 `json:"min_confidence"`    // per-member gate on contribution
	MinAudioLevel    float64 `json:"min_audio_level"`   // block level below which nothing fires
}

// DefaultEnsembleConfig returns the standard fusion tuning. Amplitude,
// HFC and bass band are on by default; the remaining members are
// available for material where the defaults underperform.
func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		Amplitude:        DetectorConfig{Enabled: true, Weight: 0.35, Threshold: 3.5},
		Flux:             DetectorConfig{Enabled: false, Weight: 0.20, Threshold: 1.4},
		HFC:              DetectorConfig{Enabled: true, Weight: 0.20, Threshold: 4.0},
		BassBand:         DetectorConfig{Enabled: true, Weight: 0.45, Threshold: 3.0},
		Complex:          DetectorConfig{Enabled: false, Weight: 0.13, Threshold: 2.0},
		Novelty:          DetectorConfig{Enabled: false, Weight: 0.12, Threshold: 2.5},
		AgreementBoosts:  []float64{0.0, 0.5, 0.9, 1.0, 1.1, 1.15, 1.2},
		CooldownMs:       250.0,
		AdaptiveCooldown: true,
		MinConfidence:    0.40,
		MinAudioLevel:    0.025,
	}
}

// EnsembleOutput is the fused transient event for one frame.
type EnsembleOutput struct {
	Fired      bool
	Strength   float64 // in [0, 1]
	Confidence float64 // in [0, 1]
	Agreement  int
	Dominant   DetectorType
}

// Ensemble runs the enabled detector variants over the same spectral
// frame and fuses their results into a single event by weighted
// agreement. Detector families with uncorrelated failure modes cover
// for each other, so no single threshold needs genre-specific tuning.
type Ensemble struct {
	cfg        EnsembleConfig
	detectors  []Detector
	configs    []DetectorConfig // indexed by DetectorType
	cooldownMs float64
	lastFireMs float64
}

// NewEnsemble constructs the closed detector set for frames produced
// by a front-end with the given geometry.
func NewEnsemble(cfg EnsembleConfig, frameRate float64, numBins, numMelBands int) *Ensemble {
	configs := make([]DetectorConfig, numDetectorTypes)
	configs[TypeAmplitude] = cfg.Amplitude
	configs[TypeFlux] = cfg.Flux
	configs[TypeHFC] = cfg.HFC
	configs[TypeBassBand] = cfg.BassBand
	configs[TypeComplexDomain] = cfg.Complex
	configs[TypeNovelty] = cfg.Novelty

	e := &Ensemble{
		cfg:        cfg,
		configs:    configs,
		cooldownMs: cfg.CooldownMs,
		lastFireMs: math.Inf(-1),
	}
	e.detectors = []Detector{
		NewAmplitudeDetector(cfg.Amplitude, frameRate),
		NewFluxDetector(cfg.Flux, numBins),
		NewHFCDetector(cfg.HFC),
		NewBassBandDetector(cfg.BassBand),
		NewComplexDomainDetector(cfg.Complex, numBins),
		NewNoveltyDetector(cfg.Novelty, numMelBands),
	}
	return e
}

// SetBeatPeriodMs adjusts the cooldown to a fraction of the tracked
// beat period when adaptive cooldown is enabled. Fast material then
// admits denser events while slow material stays debounced.
func (e *Ensemble) SetBeatPeriodMs(periodMs float64) {
	if !e.cfg.AdaptiveCooldown || periodMs <= 0 {
		return
	}
	e.cooldownMs = common.Clamp(periodMs/6.0, 40.0, 150.0)
}

// Process fuses the enabled detectors over one frame. nowMs is the
// frame timestamp on the caller's clock; it only needs to be monotonic.
func (e *Ensemble) Process(f *spectral.Frame, nowMs float64) EnsembleOutput {
	if !f.Valid {
		return EnsembleOutput{}
	}

	weightedSum := 0.0
	weightSum := 0.0
	agreement := 0
	dominant := TypeAmplitude
	dominantScore := -1.0

	audible := f.Level >= e.cfg.MinAudioLevel

	for _, d := range e.detectors {
		dc := e.configs[d.Type()]
		if !dc.Enabled {
			continue
		}

		// Detectors keep adapting through quiet passages; only the
		// fused event is gated on audibility.
		r := d.Process(f)
		if !audible || !r.Fired || r.Confidence < e.cfg.MinConfidence {
			continue
		}

		contribution := dc.Weight * r.Strength
		weightedSum += contribution
		weightSum += dc.Weight
		agreement++
		if contribution > dominantScore {
			dominantScore = contribution
			dominant = d.Type()
		}
	}

	if agreement == 0 || weightSum <= 0 {
		return EnsembleOutput{}
	}

	boost := e.boostFor(agreement)
	strength := common.Clamp01(weightedSum / weightSum * boost)
	if strength <= 0 {
		return EnsembleOutput{}
	}

	// One unified cooldown after fusion, not per detector
	if nowMs-e.lastFireMs < e.cooldownMs {
		return EnsembleOutput{}
	}
	e.lastFireMs = nowMs

	return EnsembleOutput{
		Fired:      true,
		Strength:   strength,
		Confidence: common.Clamp01(math.Min(boost, 1.0)),
		Agreement:  agreement,
		Dominant:   dominant,
	}
}

// boostFor looks up the agreement boost, clamping past the table end.
func (e *Ensemble) boostFor(agreement int) float64 {
	boosts := e.cfg.AgreementBoosts
	if len(boosts) == 0 {
		return 1.0
	}
	idx := min(agreement, len(boosts)-1)
	return boosts[idx]
}

// Reset clears all detector state and the cooldown clock.
func (e *Ensemble) Reset() {
	for _, d := range e.detectors {
		d.Reset()
	}
	e.lastFireMs = math.Inf(-1)
	e.cooldownMs = e.cfg.CooldownMs
}
