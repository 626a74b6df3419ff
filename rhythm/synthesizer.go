package rhythm

import (
	"math"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/onset"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/tempo"
)

// synthesizer folds the per-frame pipeline products into the exported
// control record. This is the only place where transient detection and
// beat phase interact; detection never feeds back into tempo.
type synthesizer struct {
	cfg OutputConfig

	attackCoeff  float64
	releaseCoeff float64
	energy       float64
	pulse        float64
}

func newSynthesizer(cfg OutputConfig, frameRate float64) *synthesizer {
	return &synthesizer{
		cfg:          cfg,
		attackCoeff:  common.SmoothingCoeff(cfg.EnergyAttackMs/1000.0, frameRate),
		releaseCoeff: common.SmoothingCoeff(cfg.EnergyReleaseMs/1000.0, frameRate),
	}
}

// synthesize builds the control record for one frame.
func (s *synthesizer) synthesize(level float64, ens onset.EnsembleOutput, phase float64,
	confirmedBeat bool, est tempo.Estimate, beatConfidence float64) AudioControl {

	// Energy: asymmetric smoothing plus a kick on confirmed beats
	target := level
	if confirmedBeat {
		target = common.Clamp01(target + s.cfg.BeatEnergyBoost)
	}
	if target > s.energy {
		s.energy += s.attackCoeff * (target - s.energy)
	} else {
		s.energy += s.releaseCoeff * (target - s.energy)
	}

	// Pulse: transient strength modulated by beat proximity, with a
	// fast decay envelope between events
	s.pulse *= s.cfg.PulseDecay
	if ens.Fired {
		proximity := math.Min(phase, 1.0-phase)
		mod := s.cfg.PulseSuppressFar
		if proximity <= s.cfg.PulsePhaseWindow {
			mod = s.cfg.PulseBoostNear
		}
		p := common.Clamp01(ens.Strength * mod)
		if p > s.pulse {
			s.pulse = p
		}
	}

	// Rhythm strength: tempo evidence blended with beat tracking
	// confidence, squashed below the activation threshold
	tempoConf := math.Max(est.Periodicity, est.Confidence)
	raw := s.cfg.PeriodicityWeight*tempoConf + s.cfg.ConfidenceWeight*beatConfidence
	if raw < s.cfg.ActivationThreshold && s.cfg.ActivationThreshold > 0 {
		raw = raw * raw / s.cfg.ActivationThreshold
	}

	if phase < 0 || phase >= 1.0 || math.IsNaN(phase) {
		phase = 0.0
	}

	return AudioControl{
		Energy:         common.Clamp01(s.energy),
		Pulse:          common.Clamp01(s.pulse),
		Phase:          phase,
		RhythmStrength: common.Clamp01(raw),
	}
}

func (s *synthesizer) reset() {
	s.energy = 0.0
	s.pulse = 0.0
}
