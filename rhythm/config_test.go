package rhythm

import (
	"math"
	"strings"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative bpm", func(c *Config) { c.Tempo.MinBPM = -10 }},
		{"inverted bpm range", func(c *Config) { c.Tempo.MinBPM = 120; c.Tempo.MaxBPM = 90 }},
		{"nan weight", func(c *Config) { c.Onset.BassWeight = math.NaN() }},
		{"huge block", func(c *Config) { c.FrontEnd.BlockSize = 1 << 20 }},
		{"alpha above one", func(c *Config) { c.Beat.Alpha = 1.5 }},
		{"pulse decay negative", func(c *Config) { c.Output.PulseDecay = -0.1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("want validation error")
			}
		})
	}
}

func TestValidateReportsAllViolations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tempo.MinBPM = -1
	cfg.Beat.Alpha = 2
	err := cfg.Validate()
	if err == nil {
		t.Fatal("want validation error")
	}
	msg := err.Error()
	for _, want := range []string{"tempo.min_bpm", "beat.alpha"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should name %q", msg, want)
		}
	}
}

func TestSanitizeRepairsPerField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tempo.PriorCenterBPM = 999    // out of range
	cfg.Output.PulsePhaseWindow = 0.2 // in range, must survive
	cfg.Ensemble.CooldownMs = math.NaN()

	repaired := cfg.Sanitize()
	if repaired != 2 {
		t.Errorf("repaired = %d, want 2", repaired)
	}
	d := DefaultConfig()
	if cfg.Tempo.PriorCenterBPM != d.Tempo.PriorCenterBPM {
		t.Errorf("prior center = %v, want default %v", cfg.Tempo.PriorCenterBPM, d.Tempo.PriorCenterBPM)
	}
	if cfg.Ensemble.CooldownMs != d.Ensemble.CooldownMs {
		t.Errorf("cooldown = %v, want default %v", cfg.Ensemble.CooldownMs, d.Ensemble.CooldownMs)
	}
	if cfg.Output.PulsePhaseWindow != 0.2 {
		t.Errorf("in-range value clobbered to %v", cfg.Output.PulsePhaseWindow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sanitized config must validate: %v", err)
	}
}

func TestSanitizeRestoresBoostTable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ensemble.AgreementBoosts = nil
	if repaired := cfg.Sanitize(); repaired != 1 {
		t.Errorf("repaired = %d, want 1", repaired)
	}
	if len(cfg.Ensemble.AgreementBoosts) == 0 {
		t.Error("boost table not restored")
	}
}
