// Package rhythm assembles the full analysis pipeline: spectral
// front-end, onset strength and ensemble detection, throttled tempo
// estimation, beat tracking and output synthesis, behind a single
// explicitly constructed Analyzer.
package rhythm

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/beat"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/onset"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/tempo"
	"github.com/RyanBlaney/sonido-rhythm/logging"
)

// OutputConfig tunes the final control record synthesis.
type OutputConfig struct {
	EnergyAttackMs  float64 `json:"energy_attack_ms"`
	EnergyReleaseMs float64 `json:"energy_release_ms"`
	BeatEnergyBoost float64 `json:"beat_energy_boost"` // added to energy on a confirmed beat

	PulseBoostNear   float64 `json:"pulse_boost_near"`   // transient near the beat phase
	PulseSuppressFar float64 `json:"pulse_suppress_far"` // transient far from the beat phase
	PulsePhaseWindow float64 `json:"pulse_phase_window"` // phase distance counting as near
	PulseDecay       float64 `json:"pulse_decay"`        // per-frame envelope decay

	PeriodicityWeight float64 `json:"periodicity_weight"`
	ConfidenceWeight  float64 `json:"confidence_weight"`

	// Below this raw value rhythm strength is squashed quadratically,
	// so weak evidence reads as clearly ambient.
	ActivationThreshold float64 `json:"activation_threshold"`
}

// DefaultOutputConfig returns the standard output tuning.
func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		EnergyAttackMs:      30.0,
		EnergyReleaseMs:     250.0,
		BeatEnergyBoost:     0.2,
		PulseBoostNear:      1.3,
		PulseSuppressFar:    0.6,
		PulsePhaseWindow:    0.15,
		PulseDecay:          0.7,
		PeriodicityWeight:   0.6,
		ConfidenceWeight:    0.4,
		ActivationThreshold: 0.3,
	}
}

// Config is the complete parameter set of the rhythm core. All values
// are plain typed fields; the console/storage collaborators populate
// them and the range table below rejects or repairs anything out of
// bounds before the core sees it.
type Config struct {
	FrontEnd spectral.FrontEndConfig `json:"front_end"`
	Onset    onset.StrengthConfig    `json:"onset"`
	Ensemble onset.EnsembleConfig    `json:"ensemble"`
	Tempo    tempo.Config            `json:"tempo"`
	Beat     beat.Config             `json:"beat"`
	Output   OutputConfig            `json:"output"`

	OSSBufferSec float64 `json:"oss_buffer_sec"` // onset history length
}

// DefaultConfig returns the built-in defaults for every parameter.
func DefaultConfig() Config {
	return Config{
		FrontEnd:     spectral.DefaultFrontEndConfig(),
		Onset:        onset.DefaultStrengthConfig(),
		Ensemble:     onset.DefaultEnsembleConfig(),
		Tempo:        tempo.DefaultConfig(),
		Beat:         beat.DefaultConfig(),
		Output:       DefaultOutputConfig(),
		OSSBufferSec: 6.0,
	}
}

// floatParam describes one bounded float parameter.
type floatParam struct {
	name     string
	ptr      *float64
	min, max float64
	def      float64
}

// intParam describes one bounded integer parameter.
type intParam struct {
	name     string
	ptr      *int
	min, max int
	def      int
}

// params builds the declared range table over the live struct. Bools
// and the band-edge bins (validated structurally by the front-end
// constructor) are not listed.
func (c *Config) params() ([]floatParam, []intParam) {
	d := DefaultConfig()

	floatParams := []floatParam{
		{"front_end.dc_cutoff_hz", &c.FrontEnd.DCCutoffHz, 0, 200, d.FrontEnd.DCCutoffHz},
		{"front_end.compressor.threshold_db", &c.FrontEnd.Compressor.ThresholdDB, -60, 0, d.FrontEnd.Compressor.ThresholdDB},
		{"front_end.compressor.ratio", &c.FrontEnd.Compressor.Ratio, 1, 20, d.FrontEnd.Compressor.Ratio},
		{"front_end.compressor.knee_db", &c.FrontEnd.Compressor.KneeDB, 0, 24, d.FrontEnd.Compressor.KneeDB},
		{"front_end.compressor.makeup_db", &c.FrontEnd.Compressor.MakeupDB, -12, 24, d.FrontEnd.Compressor.MakeupDB},
		{"front_end.compressor.attack_ms", &c.FrontEnd.Compressor.AttackMs, 1, 500, d.FrontEnd.Compressor.AttackMs},
		{"front_end.compressor.release_ms", &c.FrontEnd.Compressor.ReleaseMs, 1, 2000, d.FrontEnd.Compressor.ReleaseMs},
		{"front_end.whitening.decay", &c.FrontEnd.Whitening.Decay, 0.5, 0.9999, d.FrontEnd.Whitening.Decay},
		{"front_end.whitening.floor", &c.FrontEnd.Whitening.Floor, 1e-4, 1, d.FrontEnd.Whitening.Floor},

		{"onset.bass_weight", &c.Onset.BassWeight, 0, 4, d.Onset.BassWeight},
		{"onset.mid_weight", &c.Onset.MidWeight, 0, 4, d.Onset.MidWeight},
		{"onset.high_weight", &c.Onset.HighWeight, 0, 4, d.Onset.HighWeight},
		{"onset.gamma", &c.Onset.Gamma, 0.1, 100, d.Onset.Gamma},
		{"onset.onset_delta", &c.Onset.OnsetDelta, -1, 1, d.Onset.OnsetDelta},

		{"ensemble.amplitude.weight", &c.Ensemble.Amplitude.Weight, 0, 1, d.Ensemble.Amplitude.Weight},
		{"ensemble.amplitude.threshold", &c.Ensemble.Amplitude.Threshold, 0.1, 20, d.Ensemble.Amplitude.Threshold},
		{"ensemble.flux.weight", &c.Ensemble.Flux.Weight, 0, 1, d.Ensemble.Flux.Weight},
		{"ensemble.flux.threshold", &c.Ensemble.Flux.Threshold, 0.1, 20, d.Ensemble.Flux.Threshold},
		{"ensemble.hfc.weight", &c.Ensemble.HFC.Weight, 0, 1, d.Ensemble.HFC.Weight},
		{"ensemble.hfc.threshold", &c.Ensemble.HFC.Threshold, 0.1, 20, d.Ensemble.HFC.Threshold},
		{"ensemble.bass_band.weight", &c.Ensemble.BassBand.Weight, 0, 1, d.Ensemble.BassBand.Weight},
		{"ensemble.bass_band.threshold", &c.Ensemble.BassBand.Threshold, 0.1, 20, d.Ensemble.BassBand.Threshold},
		{"ensemble.complex_domain.weight", &c.Ensemble.Complex.Weight, 0, 1, d.Ensemble.Complex.Weight},
		{"ensemble.complex_domain.threshold", &c.Ensemble.Complex.Threshold, 0.1, 20, d.Ensemble.Complex.Threshold},
		{"ensemble.novelty.weight", &c.Ensemble.Novelty.Weight, 0, 1, d.Ensemble.Novelty.Weight},
		{"ensemble.novelty.threshold", &c.Ensemble.Novelty.Threshold, 0.1, 20, d.Ensemble.Novelty.Threshold},
		{"ensemble.cooldown_ms", &c.Ensemble.CooldownMs, 0, 2000, d.Ensemble.CooldownMs},
		{"ensemble.min_confidence", &c.Ensemble.MinConfidence, 0, 1, d.Ensemble.MinConfidence},
		{"ensemble.min_audio_level", &c.Ensemble.MinAudioLevel, 0, 1, d.Ensemble.MinAudioLevel},

		{"tempo.min_bpm", &c.Tempo.MinBPM, 30, 120, d.Tempo.MinBPM},
		{"tempo.max_bpm", &c.Tempo.MaxBPM, 90, 300, d.Tempo.MaxBPM},
		{"tempo.update_interval_ms", &c.Tempo.UpdateIntervalMs, 50, 5000, d.Tempo.UpdateIntervalMs},
		{"tempo.min_history_sec", &c.Tempo.MinHistorySec, 0.25, 10, d.Tempo.MinHistorySec},
		{"tempo.prior_center_bpm", &c.Tempo.PriorCenterBPM, 40, 240, d.Tempo.PriorCenterBPM},
		{"tempo.prior_width_bpm", &c.Tempo.PriorWidthBPM, 1, 120, d.Tempo.PriorWidthBPM},
		{"tempo.prior_weight", &c.Tempo.PriorWeight, 0, 4, d.Tempo.PriorWeight},
		{"tempo.transition_width_bpm", &c.Tempo.TransitionWidthBPM, 0.5, 40, d.Tempo.TransitionWidthBPM},
		{"tempo.posterior_floor", &c.Tempo.PosteriorFloor, 0, 0.5, d.Tempo.PosteriorFloor},
		{"tempo.acf_weight", &c.Tempo.ACFWeight, 0, 4, d.Tempo.ACFWeight},
		{"tempo.tempogram_weight", &c.Tempo.TempogramWeight, 0, 4, d.Tempo.TempogramWeight},
		{"tempo.comb_weight", &c.Tempo.CombWeight, 0, 4, d.Tempo.CombWeight},
		{"tempo.ioi_weight", &c.Tempo.IOIWeight, 0, 4, d.Tempo.IOIWeight},
		{"tempo.comb_feedback", &c.Tempo.CombFeedback, 0.1, 0.99, d.Tempo.CombFeedback},
		{"tempo.peak_rel_height", &c.Tempo.PeakRelHeight, 0, 1, d.Tempo.PeakRelHeight},
		{"tempo.silence_energy_floor", &c.Tempo.SilenceEnergyFloor, 0, 1, d.Tempo.SilenceEnergyFloor},
		{"tempo.silence_max_floor", &c.Tempo.SilenceMaxFloor, 0, 1, d.Tempo.SilenceMaxFloor},
		{"tempo.periodicity_decay", &c.Tempo.PeriodicityDecay, 0, 1, d.Tempo.PeriodicityDecay},

		{"beat.alpha", &c.Beat.Alpha, 0, 0.999, d.Beat.Alpha},
		{"beat.tightness", &c.Beat.Tightness, 0.5, 20, d.Beat.Tightness},
		{"beat.threshold_factor", &c.Beat.ThresholdFactor, 0.1, 10, d.Beat.ThresholdFactor},
		{"beat.mean_window_sec", &c.Beat.MeanWindowSec, 0.25, 10, d.Beat.MeanWindowSec},
		{"beat.early_frac", &c.Beat.EarlyFrac, 0.05, 0.5, d.Beat.EarlyFrac},
		{"beat.late_frac", &c.Beat.LateFrac, 0.05, 0.5, d.Beat.LateFrac},
		{"beat.confidence_boost", &c.Beat.ConfidenceBoost, 0, 1, d.Beat.ConfidenceBoost},
		{"beat.forced_decay", &c.Beat.ForcedDecay, 0, 1, d.Beat.ForcedDecay},
		{"beat.frame_decay", &c.Beat.FrameDecay, 0.5, 1, d.Beat.FrameDecay},
		{"beat.activity_floor", &c.Beat.ActivityFloor, 0, 0.5, d.Beat.ActivityFloor},

		{"output.energy_attack_ms", &c.Output.EnergyAttackMs, 1, 1000, d.Output.EnergyAttackMs},
		{"output.energy_release_ms", &c.Output.EnergyReleaseMs, 1, 5000, d.Output.EnergyReleaseMs},
		{"output.beat_energy_boost", &c.Output.BeatEnergyBoost, 0, 1, d.Output.BeatEnergyBoost},
		{"output.pulse_boost_near", &c.Output.PulseBoostNear, 0.5, 4, d.Output.PulseBoostNear},
		{"output.pulse_suppress_far", &c.Output.PulseSuppressFar, 0, 1, d.Output.PulseSuppressFar},
		{"output.pulse_phase_window", &c.Output.PulsePhaseWindow, 0.01, 0.5, d.Output.PulsePhaseWindow},
		{"output.pulse_decay", &c.Output.PulseDecay, 0, 1, d.Output.PulseDecay},
		{"output.periodicity_weight", &c.Output.PeriodicityWeight, 0, 1, d.Output.PeriodicityWeight},
		{"output.confidence_weight", &c.Output.ConfidenceWeight, 0, 1, d.Output.ConfidenceWeight},
		{"output.activation_threshold", &c.Output.ActivationThreshold, 0.01, 1, d.Output.ActivationThreshold},

		{"oss_buffer_sec", &c.OSSBufferSec, 2, 30, d.OSSBufferSec},
	}

	intParams := []intParam{
		{"front_end.sample_rate", &c.FrontEnd.SampleRate, 8000, 96000, d.FrontEnd.SampleRate},
		{"front_end.block_size", &c.FrontEnd.BlockSize, 64, 4096, d.FrontEnd.BlockSize},
		{"front_end.mel_bands", &c.FrontEnd.MelBands, 4, 128, d.FrontEnd.MelBands},
		{"onset.max_filter_radius", &c.Onset.MaxFilterRadius, 0, 8, d.Onset.MaxFilterRadius},
		{"onset.smooth_width", &c.Onset.SmoothWidth, 1, 16, d.Onset.SmoothWidth},
		{"tempo.num_bins", &c.Tempo.NumBins, 8, 256, d.Tempo.NumBins},
	}

	return floatParams, intParams
}

// Validate checks every parameter against its declared range and
// returns a single error naming all violations.
func (c *Config) Validate() error {
	floatParams, intParams := c.params()

	var bad []string
	for _, p := range floatParams {
		if *p.ptr < p.min || *p.ptr > p.max || *p.ptr != *p.ptr {
			bad = append(bad, fmt.Sprintf("%s=%v (want [%v, %v])", p.name, *p.ptr, p.min, p.max))
		}
	}
	for _, p := range intParams {
		if *p.ptr < p.min || *p.ptr > p.max {
			bad = append(bad, fmt.Sprintf("%s=%d (want [%d, %d])", p.name, *p.ptr, p.min, p.max))
		}
	}
	if c.Tempo.MaxBPM <= c.Tempo.MinBPM {
		bad = append(bad, fmt.Sprintf("tempo.max_bpm=%v must exceed tempo.min_bpm=%v", c.Tempo.MaxBPM, c.Tempo.MinBPM))
	}

	if len(bad) > 0 {
		return fmt.Errorf("config: %s", strings.Join(bad, "; "))
	}
	return nil
}

// Sanitize resets every out-of-range parameter to its built-in
// default and returns how many were repaired. This is the per-field
// fallback used when loading persisted state.
func (c *Config) Sanitize() int {
	floatParams, intParams := c.params()

	repaired := 0
	for _, p := range floatParams {
		if *p.ptr < p.min || *p.ptr > p.max || *p.ptr != *p.ptr {
			logging.Warn("config: resetting parameter to default", logging.Fields{
				"param": p.name, "value": *p.ptr, "default": p.def,
			})
			*p.ptr = p.def
			repaired++
		}
	}
	for _, p := range intParams {
		if *p.ptr < p.min || *p.ptr > p.max {
			logging.Warn("config: resetting parameter to default", logging.Fields{
				"param": p.name, "value": *p.ptr, "default": p.def,
			})
			*p.ptr = p.def
			repaired++
		}
	}
	if c.Tempo.MaxBPM <= c.Tempo.MinBPM {
		d := DefaultConfig()
		c.Tempo.MinBPM = d.Tempo.MinBPM
		c.Tempo.MaxBPM = d.Tempo.MaxBPM
		repaired++
	}
	if len(c.Ensemble.AgreementBoosts) == 0 {
		c.Ensemble.AgreementBoosts = DefaultConfig().Ensemble.AgreementBoosts
		repaired++
	}
	return repaired
}
