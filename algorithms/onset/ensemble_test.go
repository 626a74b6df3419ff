package onset

import (
	"testing"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
)

const (
	testFrameRate = 62.5
	testBins      = 128
	testMelBands  = 26
	testFrameMs   = 1000.0 / testFrameRate
)

// makeFrame builds a broadband frame with uniform magnitudes.
func makeFrame(level, mag float64) *spectral.Frame {
	f := &spectral.Frame{
		Magnitudes: make([]float64, testBins),
		RawMags:    make([]float64, testBins),
		Phases:     make([]float64, testBins),
		MelBands:   make([]float64, testMelBands),
		Level:      level,
		Valid:      true,
	}
	for k := range f.Magnitudes {
		f.Magnitudes[k] = mag
		f.RawMags[k] = mag
	}
	f.Bass = mag
	f.Mid = mag
	f.High = mag
	return f
}

func newTestEnsemble(cfg EnsembleConfig) *Ensemble {
	return NewEnsemble(cfg, testFrameRate, testBins, testMelBands)
}

// feedQuiet settles the ensemble on low-level frames; none may fire.
func feedQuiet(t *testing.T, e *Ensemble, frames int, startMs float64) float64 {
	t.Helper()
	now := startMs
	for i := 0; i < frames; i++ {
		if out := e.Process(makeFrame(0.03, 0.001), now); out.Fired {
			t.Fatalf("fired on quiet frame at %v ms", now)
		}
		now += testFrameMs
	}
	return now
}

func TestEnsembleFiresOnTransient(t *testing.T) {
	e := newTestEnsemble(DefaultEnsembleConfig())
	now := feedQuiet(t, e, 80, 0)

	out := e.Process(makeFrame(0.9, 0.5), now)
	if !out.Fired {
		t.Fatal("loud broadband frame should fire")
	}
	if out.Agreement < 2 {
		t.Errorf("agreement = %d, want >= 2", out.Agreement)
	}
	if out.Confidence < 0.9 {
		t.Errorf("confidence = %v, want >= 0.9 with full agreement", out.Confidence)
	}
	if out.Strength <= 0 || out.Strength > 1 {
		t.Errorf("strength = %v, want in (0, 1]", out.Strength)
	}
}

func TestEnsembleCooldown(t *testing.T) {
	cfg := DefaultEnsembleConfig()
	cfg.AdaptiveCooldown = false
	e := newTestEnsemble(cfg)
	now := feedQuiet(t, e, 80, 0)

	if out := e.Process(makeFrame(0.9, 0.5), now); !out.Fired {
		t.Fatal("first transient should fire")
	}
	// One frame later is well inside the 250 ms cooldown
	if out := e.Process(makeFrame(0.9, 0.5), now+testFrameMs); out.Fired {
		t.Error("second transient inside cooldown should be suppressed")
	}
	// Past the cooldown a fresh transient is admitted again
	later := now + cfg.CooldownMs + testFrameMs
	e.Process(makeFrame(0.03, 0.001), later-testFrameMs)
	if out := e.Process(makeFrame(0.9, 0.8), later); !out.Fired {
		t.Error("transient past cooldown should fire")
	}
}

func TestEnsembleAdaptiveCooldown(t *testing.T) {
	e := newTestEnsemble(DefaultEnsembleConfig())

	e.SetBeatPeriodMs(300.0) // 200 BPM: period/6 = 50 ms
	if e.cooldownMs != 50.0 {
		t.Errorf("cooldown = %v, want 50", e.cooldownMs)
	}
	e.SetBeatPeriodMs(2000.0) // clamped at the slow end
	if e.cooldownMs != 150.0 {
		t.Errorf("cooldown = %v, want clamp at 150", e.cooldownMs)
	}
	e.SetBeatPeriodMs(60.0) // clamped at the fast end
	if e.cooldownMs != 40.0 {
		t.Errorf("cooldown = %v, want clamp at 40", e.cooldownMs)
	}
}

func TestEnsembleSoloDetector(t *testing.T) {
	cfg := DefaultEnsembleConfig()
	cfg.Amplitude.Enabled = false
	cfg.BassBand.Enabled = false
	// Only HFC remains; a lone detector is valid but suppressed
	e := newTestEnsemble(cfg)
	now := feedQuiet(t, e, 80, 0)

	out := e.Process(makeFrame(0.9, 0.5), now)
	if !out.Fired {
		t.Fatal("solo HFC should still fire")
	}
	if out.Agreement != 1 {
		t.Errorf("agreement = %d, want 1", out.Agreement)
	}
	if out.Confidence >= 0.9 {
		t.Errorf("solo confidence = %v, want suppressed below full agreement", out.Confidence)
	}
	if out.Dominant != TypeHFC {
		t.Errorf("dominant = %v, want hfc", out.Dominant)
	}
}

func TestEnsembleAgreementBoostsMonotonic(t *testing.T) {
	e := newTestEnsemble(DefaultEnsembleConfig())
	prev := e.boostFor(0)
	for agreement := 1; agreement <= 8; agreement++ {
		b := e.boostFor(agreement)
		if b < prev {
			t.Errorf("boost(%d) = %v below boost(%d) = %v", agreement, b, agreement-1, prev)
		}
		prev = b
	}
	// Past the table end the boost clamps instead of indexing out
	if got := e.boostFor(100); got != 1.2 {
		t.Errorf("clamped boost = %v, want 1.2", got)
	}
}

func TestEnsembleMinAudioLevel(t *testing.T) {
	e := newTestEnsemble(DefaultEnsembleConfig())
	now := feedQuiet(t, e, 80, 0)

	// Strong spectral change but a level below the audibility gate
	f := makeFrame(0.01, 0.5)
	if out := e.Process(f, now); out.Fired {
		t.Error("inaudible frame should never fire")
	}
}

func TestEnsembleInvalidFrame(t *testing.T) {
	e := newTestEnsemble(DefaultEnsembleConfig())
	f := makeFrame(0.9, 0.5)
	f.Valid = false
	if out := e.Process(f, 0); out.Fired {
		t.Error("invalid frame should produce no event")
	}
}
