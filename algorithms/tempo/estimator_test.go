package tempo

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
)

const (
	testFrameRate = 62.5
	testCapacity  = 384 // about 6 seconds
)

// runImpulseTrain drives the estimator with a unit impulse every
// period frames and returns the final estimate.
func runImpulseTrain(t *testing.T, cfg Config, period, frames int) Estimate {
	t.Helper()
	est, err := NewEstimator(cfg, testFrameRate, testCapacity)
	if err != nil {
		t.Fatal(err)
	}

	ring := common.NewRing(testCapacity)
	for frame := int64(0); frame < int64(frames); frame++ {
		oss := 0.0
		onset := frame%int64(period) == 0
		if onset {
			oss = 1.0
		}
		ring.Push(oss)
		est.ObserveFrame(oss, onset, frame)
		est.MaybeUpdate(ring, frame)
	}
	return est.Current()
}

func TestEstimatorLocksOnImpulseTrain(t *testing.T) {
	// Period 31 frames at 62.5 fps is 121 BPM
	est := runImpulseTrain(t, DefaultConfig(), 31, 1200)

	if !est.Valid {
		t.Fatal("estimate should be valid")
	}
	if est.BPM < 117 || est.BPM > 125 {
		t.Errorf("BPM = %v, want near 121", est.BPM)
	}
	if est.Periodicity < 0.5 {
		t.Errorf("periodicity = %v, want strong", est.Periodicity)
	}
	if est.Confidence <= 0 {
		t.Errorf("confidence = %v, want positive", est.Confidence)
	}
	wantPeriod := testFrameRate * 60.0 / est.BPM
	if math.Abs(est.PeriodFrames-wantPeriod) > 1e-9 {
		t.Errorf("period = %v, want %v", est.PeriodFrames, wantPeriod)
	}
}

func TestEstimatorPrefersDupleReading(t *testing.T) {
	// A 60.5 BPM impulse train reads as 121 BPM under the default
	// tempo prior: the harmonic comb supports both and the prior
	// breaks the tie toward the dance range.
	est := runImpulseTrain(t, DefaultConfig(), 62, 1500)

	if !est.Valid {
		t.Fatal("estimate should be valid")
	}
	if est.BPM < 110 || est.BPM > 132 {
		t.Errorf("BPM = %v, want the duple reading near 121", est.BPM)
	}
}

func TestEstimatorDupleBiasWithoutPrior(t *testing.T) {
	// The duple bias is structural, not a prior artifact: the
	// 4-harmonic comb and the Rayleigh lag weight both favor the
	// half-period reading, so a 60.5 BPM train still lands near
	// 121 BPM with the prior switched off. Known limitation,
	// pinned here so it only changes deliberately.
	cfg := DefaultConfig()
	cfg.PriorEnabled = false
	est := runImpulseTrain(t, cfg, 62, 1500)

	if !est.Valid {
		t.Fatal("estimate should be valid")
	}
	if est.BPM < 110 || est.BPM > 132 {
		t.Errorf("BPM = %v, want near 121 even without the prior", est.BPM)
	}
}

func TestEstimatorSilence(t *testing.T) {
	cfg := DefaultConfig()
	est, err := NewEstimator(cfg, testFrameRate, testCapacity)
	if err != nil {
		t.Fatal(err)
	}

	ring := common.NewRing(testCapacity)
	for frame := int64(0); frame < int64(1200); frame++ {
		ring.Push(0.0)
		est.ObserveFrame(0.0, false, frame)
		est.MaybeUpdate(ring, frame)
	}

	got := est.Current()
	if got.Valid {
		t.Error("silence should never produce a valid estimate")
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
	if got.Periodicity > 0.01 {
		t.Errorf("periodicity = %v, want decayed to nothing", got.Periodicity)
	}
}

func TestEstimatorDeclinesWithoutHistory(t *testing.T) {
	cfg := DefaultConfig()
	est, err := NewEstimator(cfg, testFrameRate, testCapacity)
	if err != nil {
		t.Fatal(err)
	}

	// Fewer frames than MinHistorySec worth of samples
	ring := common.NewRing(testCapacity)
	for i := 0; i < 30; i++ {
		ring.Push(1.0)
	}
	got, ran := est.MaybeUpdate(ring, int64(cfg.UpdateIntervalMs/1000.0*testFrameRate)+1)
	if !ran {
		t.Fatal("update should have run")
	}
	if got.Valid || got.Confidence != 0 {
		t.Errorf("estimate = %+v, want declined", got)
	}
}

func TestEstimatorThrottle(t *testing.T) {
	est, err := NewEstimator(DefaultConfig(), testFrameRate, testCapacity)
	if err != nil {
		t.Fatal(err)
	}

	ring := common.NewRing(testCapacity)
	ring.Push(1.0)
	if _, ran := est.MaybeUpdate(ring, 5); ran {
		t.Error("update inside the throttle interval should be skipped")
	}
}

func TestEstimatorRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBPM = cfg.MinBPM
	if _, err := NewEstimator(cfg, testFrameRate, testCapacity); err == nil {
		t.Error("inverted BPM range accepted")
	}

	cfg = DefaultConfig()
	if _, err := NewEstimator(cfg, testFrameRate, 30); err == nil {
		t.Error("undersized history accepted")
	}
}

func TestAutocorrelatorImpulseTrain(t *testing.T) {
	a := NewAutocorrelator(testCapacity, 130)
	oss := make([]float64, testCapacity)
	for i := range oss {
		if i%31 == 0 {
			oss[i] = 1.0
		}
	}

	acf, normPeak := a.Compute(oss, 20, 125)
	if normPeak < 0.8 {
		t.Fatalf("normPeak = %v, want near 1 for a perfect train", normPeak)
	}
	// Inverse-lag weighting keeps the fundamental above its double
	if acf[31] <= acf[62] {
		t.Errorf("acf[31] = %v should exceed acf[62] = %v", acf[31], acf[62])
	}
	// Off-period lags carry no support
	if acf[25] >= acf[31] {
		t.Errorf("acf[25] = %v should be below acf[31] = %v", acf[25], acf[31])
	}
}

func TestAutocorrelatorSilence(t *testing.T) {
	a := NewAutocorrelator(128, 64)
	acf, normPeak := a.Compute(make([]float64, 128), 20, 63)
	if normPeak != 0 {
		t.Errorf("normPeak = %v, want 0", normPeak)
	}
	for lag, v := range acf {
		if v != 0 {
			t.Fatalf("acf[%d] = %v, want 0", lag, v)
		}
	}
}

func TestPosteriorConvergesOnRepeatedEvidence(t *testing.T) {
	bins := make([]Bin, 20)
	for i := range bins {
		bins[i] = Bin{BPM: 60 + float64(i)*6, Lag: testFrameRate * 60.0 / (60 + float64(i)*6)}
	}
	p := NewPosterior(bins, 120, 25, 4, 0.02)

	obs := make([]float64, len(bins))
	obs[10] = 1.0 // 120 BPM

	var best int
	var conf float64
	for i := 0; i < 10; i++ {
		p.Begin()
		p.Apply(obs, 1.0)
		best, conf = p.Finish()
	}
	if best != 10 {
		t.Errorf("MAP bin = %d, want 10", best)
	}
	if conf < 0.5 {
		t.Errorf("confidence = %v, want concentrated", conf)
	}
}

func TestPosteriorFloorKeepsHypothesesAlive(t *testing.T) {
	bins := []Bin{{BPM: 60, Lag: 62.5}, {BPM: 120, Lag: 31.25}, {BPM: 180, Lag: 20.83}}
	p := NewPosterior(bins, 120, 25, 4, 0.1)

	obs := []float64{0, 1, 0}
	for i := 0; i < 20; i++ {
		p.Begin()
		p.Apply(obs, 2.0)
		p.Finish()
	}
	for i := range bins {
		if p.Value(i) <= 0 {
			t.Errorf("bin %d starved to %v", i, p.Value(i))
		}
	}
}

func TestPosteriorZeroWeightIsNoOp(t *testing.T) {
	bins := []Bin{{BPM: 100, Lag: 37.5}, {BPM: 140, Lag: 26.8}}
	p := NewPosterior(bins, 120, 25, 4, 0.02)

	p.Begin()
	before := []float64{0, 0}
	copy(before, p.cur)
	p.Apply([]float64{0, 1}, 0.0)
	for i := range p.cur {
		if p.cur[i] != before[i] {
			t.Fatalf("bin %d changed under zero weight", i)
		}
	}
}
