package beat

import "testing"

const (
	testFrameRate = 62.5
	testCapacity  = 384
	testPeriod    = 31 // about 121 BPM
)

// impulseOSS returns the onset strength for an impulse train frame.
func impulseOSS(frame int64) float64 {
	if frame%testPeriod == 0 {
		return 1.0
	}
	return 0.0
}

func TestTrackerConfirmsImpulseTrain(t *testing.T) {
	tr := NewTracker(DefaultConfig(), testFrameRate, testCapacity)
	tr.SetPeriod(testPeriod)

	var confirmed []int64
	for frame := int64(0); frame < 500; frame++ {
		ev := tr.Step(frame, impulseOSS(frame))
		if ev.Fired && ev.Forced {
			t.Fatalf("forced beat at frame %d with a clean impulse train", frame)
		}
		if ev.Fired {
			confirmed = append(confirmed, ev.Frame)
		}
	}

	if len(confirmed) < 10 {
		t.Fatalf("confirmed %d beats, want at least 10", len(confirmed))
	}
	for i := 1; i < len(confirmed); i++ {
		gap := confirmed[i] - confirmed[i-1]
		if gap < testPeriod-2 || gap > testPeriod+2 {
			t.Errorf("beat gap %d at index %d, want near %d", gap, i, testPeriod)
		}
	}
	if !tr.Started() {
		t.Error("tracker should have started")
	}
	if tr.State() != StateLocked {
		t.Errorf("state = %v, want locked", tr.State())
	}
	if tr.Confidence() < 0.5 {
		t.Errorf("confidence = %v, want built up", tr.Confidence())
	}
	if cv := tr.StabilityCV(); cv > 0.1 {
		t.Errorf("stability CV = %v, want near 0 for a steady train", cv)
	}
}

func TestTrackerPhase(t *testing.T) {
	tr := NewTracker(DefaultConfig(), testFrameRate, testCapacity)
	tr.SetPeriod(testPeriod)

	// Before tracking starts the phase holds still
	if got := tr.Phase(10); got != 0 {
		t.Errorf("phase before start = %v, want 0", got)
	}

	for frame := int64(0); frame < 500; frame++ {
		tr.Step(frame, impulseOSS(frame))
		p := tr.Phase(frame)
		if p < 0 || p >= 1 {
			t.Fatalf("phase = %v at frame %d, want in [0, 1)", p, frame)
		}
	}

	// Phase restarts at the beat and advances by 1/period per frame
	last := tr.LastBeatFrame()
	if got := tr.Phase(last); got != 0 {
		t.Errorf("phase on the beat = %v, want 0", got)
	}
	if got := tr.Phase(last + testPeriod/2); got < 0.4 || got > 0.6 {
		t.Errorf("mid-cycle phase = %v, want near 0.5", got)
	}
}

func TestTrackerForcedBeatsOnFlatSignal(t *testing.T) {
	tr := NewTracker(DefaultConfig(), testFrameRate, testCapacity)
	tr.SetPeriod(testPeriod)

	var frame int64
	for ; frame < 300; frame++ {
		tr.Step(frame, impulseOSS(frame))
	}
	lockedConf := tr.Confidence()
	if !tr.Started() {
		t.Fatal("tracker should be locked before the dropout")
	}

	// Flat signal: the deadline keeps beats coming, marked forced
	forced := 0
	fired := 0
	for ; frame < 900; frame++ {
		ev := tr.Step(frame, 0.5)
		if ev.Fired {
			fired++
			if ev.Forced {
				forced++
			}
		}
	}
	if fired == 0 {
		t.Fatal("phase must keep advancing through a dropout")
	}
	if forced == 0 {
		t.Error("a featureless signal should eventually force beats")
	}
	if tr.Confidence() >= lockedConf {
		t.Errorf("confidence %v should decay below locked level %v",
			tr.Confidence(), lockedConf)
	}
}

func TestTrackerIdleWithoutPeriod(t *testing.T) {
	tr := NewTracker(DefaultConfig(), testFrameRate, testCapacity)

	for frame := int64(0); frame < int64(200); frame++ {
		ev := tr.Step(frame, impulseOSS(frame))
		if ev.Fired {
			t.Fatalf("beat at frame %d without a tempo estimate", frame)
		}
	}
	if tr.Started() {
		t.Error("tracker must not start before a period arrives")
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(DefaultConfig(), testFrameRate, testCapacity)
	tr.SetPeriod(testPeriod)
	for frame := int64(0); frame < int64(300); frame++ {
		tr.Step(frame, impulseOSS(frame))
	}

	tr.Reset()
	if tr.Started() || tr.Confidence() != 0 {
		t.Error("reset should clear tracking state")
	}
	if tr.StabilityCV() != 1.0 {
		t.Errorf("stability CV after reset = %v, want 1", tr.StabilityCV())
	}
}

func TestCBSSAccumulatesPeriodicEnergy(t *testing.T) {
	cfg := DefaultConfig()
	c := NewCBSS(testCapacity, cfg.Alpha, cfg.Tightness)

	var onBeat, offBeat float64
	for frame := int64(0); frame < 500; frame++ {
		v := c.Update(impulseOSS(frame), testPeriod)
		if frame > 300 {
			if frame%testPeriod == 0 {
				onBeat = v
			} else if frame%testPeriod == testPeriod/2 {
				offBeat = v
			}
		}
	}
	if onBeat <= offBeat*2 {
		t.Errorf("on-beat CBSS %v should clearly exceed off-beat %v", onBeat, offBeat)
	}
}
