package spectral

import (
	"math"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
)

// CompressorConfig holds soft-knee compressor parameters. Level
// detection runs once per block, so attack and release constants are
// interpreted at the block rate.
type CompressorConfig struct {
	Enabled     bool    `json:"enabled"`
	ThresholdDB float64 `json:"threshold_db"` // level where gain reduction begins
	Ratio       float64 `json:"ratio"`        // compression ratio above the knee
	KneeDB      float64 `json:"knee_db"`      // soft knee width
	MakeupDB    float64 `json:"makeup_db"`    // post-compression gain
	AttackMs    float64 `json:"attack_ms"`
	ReleaseMs   float64 `json:"release_ms"`
}

// DefaultCompressorConfig returns settings tuned for speech and music
// picked up by a nearby microphone.
func DefaultCompressorConfig() CompressorConfig {
	return CompressorConfig{
		Enabled:     true,
		ThresholdDB: -24.0,
		Ratio:       3.0,
		KneeDB:      6.0,
		MakeupDB:    6.0,
		AttackMs:    10.0,
		ReleaseMs:   120.0,
	}
}

// Compressor is a block-rate soft-knee dynamic range compressor
// (Giannoulis-style gain computer with one-pole ballistics). It tames
// gross level differences so the detectors behind it see a stable
// operating range.
type Compressor struct {
	cfg          CompressorConfig
	attackCoeff  float64
	releaseCoeff float64
	gainReducDB  float64 // smoothed gain reduction, >= 0
}

// NewCompressor creates a compressor running at the given block rate.
func NewCompressor(cfg CompressorConfig, blockRate float64) *Compressor {
	return &Compressor{
		cfg:          cfg,
		attackCoeff:  common.SmoothingCoeff(cfg.AttackMs/1000.0, blockRate),
		releaseCoeff: common.SmoothingCoeff(cfg.ReleaseMs/1000.0, blockRate),
	}
}

// Process applies compression in place and returns the post-gain RMS
// of the block. Disabled compressors still report the block RMS.
func (c *Compressor) Process(samples []float64) float64 {
	rms := common.RMS(samples)
	if !c.cfg.Enabled {
		return rms
	}

	levelDB := -96.0
	if rms > 1e-5 {
		levelDB = 20.0 * math.Log10(rms)
	}

	target := c.gainComputer(levelDB)
	if target > c.gainReducDB {
		c.gainReducDB += c.attackCoeff * (target - c.gainReducDB)
	} else {
		c.gainReducDB += c.releaseCoeff * (target - c.gainReducDB)
	}

	gain := math.Pow(10.0, (c.cfg.MakeupDB-c.gainReducDB)/20.0)
	for i := range samples {
		samples[i] *= gain
	}

	return rms * gain
}

// gainComputer returns the static gain reduction in dB for an input
// level, using a quadratic soft knee around the threshold.
func (c *Compressor) gainComputer(levelDB float64) float64 {
	over := levelDB - c.cfg.ThresholdDB
	knee := c.cfg.KneeDB
	ratio := math.Max(c.cfg.Ratio, 1.0)

	switch {
	case 2.0*over < -knee:
		return 0.0
	case 2.0*math.Abs(over) <= knee:
		d := over + knee/2.0
		return (1.0/ratio - 1.0) * d * d / (2.0 * knee) * -1.0
	default:
		return over * (1.0 - 1.0/ratio)
	}
}

// Reset clears the envelope state.
func (c *Compressor) Reset() {
	c.gainReducDB = 0.0
}
