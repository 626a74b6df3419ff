package onset

import (
	"testing"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
)

func spectralFrame(mag float64) *spectral.Frame {
	f := &spectral.Frame{
		Magnitudes: make([]float64, testBins),
		Valid:      true,
	}
	for k := range f.Magnitudes {
		f.Magnitudes[k] = mag
	}
	return f
}

func TestStrengthSpikesOnOnset(t *testing.T) {
	sg := NewStrengthGenerator(DefaultStrengthConfig(), testBins, 6, 32)

	// First frame only primes the spectral history
	if got := sg.Process(spectralFrame(0.0)); got != 0 {
		t.Fatalf("priming frame oss = %v, want 0", got)
	}

	for i := 0; i < 20; i++ {
		if got := sg.Process(spectralFrame(0.0)); got != 0 {
			t.Fatalf("silent frame oss = %v, want 0", got)
		}
	}

	onset := sg.Process(spectralFrame(0.8))
	if onset <= 0 {
		t.Fatalf("onset frame oss = %v, want positive", onset)
	}

	// Sustained energy produces no further flux
	sustained := sg.Process(spectralFrame(0.8))
	if sustained >= onset {
		t.Errorf("sustained oss = %v, want below onset %v", sustained, onset)
	}
}

func TestStrengthBassWeighting(t *testing.T) {
	cfg := DefaultStrengthConfig()
	sg := NewStrengthGenerator(cfg, testBins, 6, 32)

	bassFrame := spectralFrame(0.0)
	for k := 1; k <= 6; k++ {
		bassFrame.Magnitudes[k] = 0.8
	}
	highFrame := spectralFrame(0.0)
	for k := 100; k <= 105; k++ {
		highFrame.Magnitudes[k] = 0.8
	}

	sg.Process(spectralFrame(0.0))
	sg.Process(spectralFrame(0.0))
	bassOSS := sg.Process(bassFrame)

	sg.Reset()
	sg.Process(spectralFrame(0.0))
	sg.Process(spectralFrame(0.0))
	highOSS := sg.Process(highFrame)

	if bassOSS <= highOSS {
		t.Errorf("bass onset %v should outweigh high onset %v", bassOSS, highOSS)
	}
	// The ratio follows the configured band weights
	if bassOSS < highOSS*(cfg.BassWeight/cfg.HighWeight)*0.9 {
		t.Errorf("bass/high ratio = %v, want near %v", bassOSS/highOSS, cfg.BassWeight/cfg.HighWeight)
	}
}

func TestStrengthInvalidFrame(t *testing.T) {
	sg := NewStrengthGenerator(DefaultStrengthConfig(), testBins, 6, 32)
	f := spectralFrame(0.5)
	f.Valid = false
	if got := sg.Process(f); got != 0 {
		t.Errorf("invalid frame oss = %v, want 0", got)
	}
}

func TestStrengthOnsetDeltaGate(t *testing.T) {
	cfg := DefaultStrengthConfig()
	cfg.OnsetDelta = 0.05
	sg := NewStrengthGenerator(cfg, testBins, 6, 32)

	sg.Process(spectralFrame(0.0))
	sg.Process(spectralFrame(0.0))
	if got := sg.Process(spectralFrame(0.8)); got <= 0 {
		t.Fatalf("sharp rise oss = %v, want positive", got)
	}
	// Flux falling back below the previous value is gated to zero
	if got := sg.Process(spectralFrame(0.8)); got != 0 {
		t.Errorf("non-rising oss = %v, want 0", got)
	}
}
