package filters

import (
	"math"
	"testing"
)

func TestDCBlockerRemovesOffset(t *testing.T) {
	d := NewDCBlocker(16000, 20.0)

	// A constant offset must decay toward zero
	block := make([]float64, 4096)
	for i := range block {
		block[i] = 0.5
	}
	d.Process(block)

	tail := block[len(block)-256:]
	sum := 0.0
	for _, v := range tail {
		sum += v
	}
	if mean := math.Abs(sum / float64(len(tail))); mean > 0.01 {
		t.Errorf("residual offset = %v, want near 0", mean)
	}
}

func TestDCBlockerPassesAudio(t *testing.T) {
	d := NewDCBlocker(16000, 20.0)

	// 1 kHz is far above the corner and passes nearly untouched
	block := make([]float64, 4096)
	for i := range block {
		block[i] = 0.5 * math.Sin(2.0*math.Pi*1000.0*float64(i)/16000.0)
	}
	d.Process(block)

	rms := 0.0
	for _, v := range block[1024:] {
		rms += v * v
	}
	rms = math.Sqrt(rms / float64(len(block)-1024))
	want := 0.5 / math.Sqrt2
	if math.Abs(rms-want) > 0.05*want {
		t.Errorf("passband RMS = %v, want near %v", rms, want)
	}
}

func TestDCBlockerBadCutoffFallsBack(t *testing.T) {
	d := NewDCBlocker(16000, -5.0)
	if d.pole != 0.995 {
		t.Errorf("pole = %v, want fallback 0.995", d.pole)
	}
}
