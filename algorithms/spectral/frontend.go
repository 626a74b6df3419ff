package spectral

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/filters"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/windowing"
)

// FrontEndConfig configures the spectral front-end.
type FrontEndConfig struct {
	SampleRate int `json:"sample_rate"`
	BlockSize  int `json:"block_size"` // samples per frame, power of two
	MelBands   int `json:"mel_bands"`

	// DCCutoffHz sets the DC blocker corner; 0 disables it.
	DCCutoffHz float64 `json:"dc_cutoff_hz"`

	// Coarse band edges as bin indices. Bin 0 (DC) is excluded from
	// the bass band.
	BassLowBin  int `json:"bass_low_bin"`
	BassHighBin int `json:"bass_high_bin"`
	MidHighBin  int `json:"mid_high_bin"`

	Compressor CompressorConfig `json:"compressor"`
	Whitening  WhiteningConfig  `json:"whitening"`
}

// DefaultFrontEndConfig returns the standard 16 kHz / 256-sample
// configuration. At this rate each bin spans 62.5 Hz, so the bass band
// covers roughly 60-400 Hz and the mid band up to 2 kHz.
func DefaultFrontEndConfig() FrontEndConfig {
	return FrontEndConfig{
		SampleRate:  16000,
		BlockSize:   256,
		MelBands:    26,
		DCCutoffHz:  20.0,
		BassLowBin:  1,
		BassHighBin: 6,
		MidHighBin:  32,
		Compressor:  DefaultCompressorConfig(),
		Whitening:   DefaultWhiteningConfig(),
	}
}

// FrontEnd turns fixed-size PCM blocks into spectral frames: DC
// blocking and soft-knee compression ahead of the transform, Hamming
// window, real FFT, magnitude and phase extraction with NaN guards,
// and per-bin adaptive whitening behind it. All scratch space is allocated at construction
// and reused, so the per-frame path is steady-state.
type FrontEnd struct {
	cfg     FrontEndConfig
	numBins int

	window     *windowing.Hamming
	fft        *FFT
	dcBlock    *filters.DCBlocker
	compressor *Compressor
	whitener   *Whitener
	melBank    *MelBank

	scratch  []float64
	windowed []float64
	frame    Frame
}

// NewFrontEnd validates the configuration and allocates all per-frame
// working memory.
func NewFrontEnd(cfg FrontEndConfig) (*FrontEnd, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("front-end: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if !common.IsPowerOfTwo(cfg.BlockSize) {
		return nil, fmt.Errorf("front-end: block size must be a power of two, got %d", cfg.BlockSize)
	}
	if cfg.BassLowBin < 0 || cfg.BassHighBin <= cfg.BassLowBin || cfg.MidHighBin <= cfg.BassHighBin {
		return nil, fmt.Errorf("front-end: band edges must be ordered, got %d/%d/%d",
			cfg.BassLowBin, cfg.BassHighBin, cfg.MidHighBin)
	}

	numBins := cfg.BlockSize / 2
	blockRate := float64(cfg.SampleRate) / float64(cfg.BlockSize)

	fe := &FrontEnd{
		cfg:        cfg,
		numBins:    numBins,
		window:     windowing.NewHamming(cfg.BlockSize, false),
		fft:        NewFFT(),
		compressor: NewCompressor(cfg.Compressor, blockRate),
		whitener:   NewWhitener(cfg.Whitening, numBins),
		melBank:    NewMelBank(cfg.MelBands, numBins, cfg.SampleRate, 60.0, float64(cfg.SampleRate)/2.0),
		scratch:    make([]float64, cfg.BlockSize),
		windowed:   make([]float64, cfg.BlockSize),
	}
	if cfg.DCCutoffHz > 0 {
		fe.dcBlock = filters.NewDCBlocker(cfg.SampleRate, cfg.DCCutoffHz)
	}
	fe.frame = Frame{
		Magnitudes: make([]float64, numBins),
		RawMags:    make([]float64, numBins),
		Phases:     make([]float64, numBins),
		MelBands:   make([]float64, cfg.MelBands),
	}

	return fe, nil
}

// NumBins returns the number of magnitude bins per frame.
func (fe *FrontEnd) NumBins() int {
	return fe.numBins
}

// FrameRate returns the number of frames produced per second.
func (fe *FrontEnd) FrameRate() float64 {
	return float64(fe.cfg.SampleRate) / float64(fe.cfg.BlockSize)
}

// Process analyzes one PCM block. The returned frame is owned by the
// front-end and valid until the next call. A block of the wrong size
// yields the previous frame with Valid cleared.
func (fe *FrontEnd) Process(block []float64) *Frame {
	if len(block) != fe.cfg.BlockSize {
		fe.frame.Valid = false
		return &fe.frame
	}

	copy(fe.scratch, block)
	if fe.dcBlock != nil {
		fe.dcBlock.Process(fe.scratch)
	}
	level := fe.compressor.Process(fe.scratch)
	if err := fe.window.ApplyTo(fe.windowed, fe.scratch); err != nil {
		fe.frame.Valid = false
		return &fe.frame
	}

	spectrum := fe.fft.Compute(fe.windowed)

	scale := 2.0 / float64(fe.cfg.BlockSize)
	for k := 0; k < fe.numBins; k++ {
		re := real(spectrum[k])
		im := imag(spectrum[k])
		mag := math.Hypot(re, im) * scale
		if math.IsNaN(mag) || math.IsInf(mag, 0) {
			mag = 0.0
		}
		fe.frame.RawMags[k] = mag
		fe.frame.Phases[k] = math.Atan2(im, re)
		if math.IsNaN(fe.frame.Phases[k]) {
			fe.frame.Phases[k] = 0.0
		}
	}

	fe.melBank.Apply(fe.frame.RawMags, fe.frame.MelBands)

	copy(fe.frame.Magnitudes, fe.frame.RawMags)
	fe.whitener.Process(fe.frame.Magnitudes)

	fe.frame.Bass = bandMean(fe.frame.Magnitudes, fe.cfg.BassLowBin, fe.cfg.BassHighBin)
	fe.frame.Mid = bandMean(fe.frame.Magnitudes, fe.cfg.BassHighBin+1, fe.cfg.MidHighBin)
	fe.frame.High = bandMean(fe.frame.Magnitudes, fe.cfg.MidHighBin+1, fe.numBins-1)

	fe.frame.Level = common.Clamp01(level)
	fe.frame.Valid = true

	return &fe.frame
}

// Reset clears all adaptive state (compressor envelope, whitening
// maxima) without reallocating.
func (fe *FrontEnd) Reset() {
	if fe.dcBlock != nil {
		fe.dcBlock.Reset()
	}
	fe.compressor.Reset()
	fe.whitener.Reset()
	fe.frame.Valid = false
}

// bandMean averages magnitudes over the inclusive bin range [lo, hi].
func bandMean(magnitudes []float64, lo, hi int) float64 {
	lo = max(lo, 0)
	hi = min(hi, len(magnitudes)-1)
	if hi < lo {
		return 0.0
	}

	sum := 0.0
	for k := lo; k <= hi; k++ {
		sum += magnitudes[k]
	}
	return sum / float64(hi-lo+1)
}
