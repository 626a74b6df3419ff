package beat

import (
	"math"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
)

// State is the tracker's position in the beat cycle.
type State int

const (
	// StateSearching means the detection window around the predicted
	// beat is open and no beat has been found yet.
	StateSearching State = iota
	// StateLocked means the last cycle ended with a confirmed beat.
	StateLocked
	// StateForced means the last cycle expired and a synthetic beat
	// was placed at the prediction.
	StateForced
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateLocked:
		return "locked"
	case StateForced:
		return "forced"
	default:
		return "unknown"
	}
}

// Config tunes the beat tracker.
type Config struct {
	Alpha     float64 `json:"alpha"`     // recursive weight of the CBSS blend
	Tightness float64 `json:"tightness"` // log-Gaussian window sharpness

	ThresholdFactor float64 `json:"threshold_factor"` // beat must exceed factor x running CBSS mean
	MeanWindowSec   float64 `json:"mean_window_sec"`  // time constant of the running mean

	EarlyFrac float64 `json:"early_frac"` // window opens this fraction of a period early
	LateFrac  float64 `json:"late_frac"`  // window closes this fraction late, then forces

	ConfidenceBoost float64 `json:"confidence_boost"` // added on a confirmed beat
	ForcedDecay     float64 `json:"forced_decay"`     // multiplied on a forced beat
	FrameDecay      float64 `json:"frame_decay"`      // multiplied every frame without a beat

	// ActivityFloor is the minimum smoothed onset activity for beat
	// confirmation. Below it the CBSS still resonates from history,
	// so without this gate a dropout would keep confirming beats off
	// its own echo instead of taking the forced path.
	ActivityFloor float64 `json:"activity_floor"`
}

// DefaultConfig returns the standard tracker tuning.
func DefaultConfig() Config {
	return Config{
		Alpha:           0.9,
		Tightness:       5.0,
		ThresholdFactor: 1.3,
		MeanWindowSec:   2.0,
		EarlyFrac:       0.2,
		LateFrac:        0.35,
		ConfidenceBoost: 0.15,
		ForcedDecay:     0.85,
		FrameDecay:      0.995,
		ActivityFloor:   0.005,
	}
}

// Event describes what happened in one tracker step.
type Event struct {
	Fired      bool
	Forced     bool
	Frame      int64 // beat position, valid when Fired
	Confidence float64
}

// Tracker runs the beat cycle state machine. Phase is always
// recomputed from the last beat position and the current period, never
// integrated, so it cannot drift; the late window edge is a hard
// deadline that forces a beat rather than letting the search stall.
type Tracker struct {
	cfg       Config
	frameRate float64
	cbss      *CBSS

	state         State
	period        float64 // beat period in frames, 0 until a tempo arrives
	lastBeatFrame int64
	started       bool

	confidence    float64
	cbssMean      float64
	meanCoeff     float64
	activity      float64
	activityCoeff float64
	lastPhase     float64

	intervals *common.Ring // recent confirmed beat intervals, frames
	cvScratch []float64
}

// NewTracker creates a tracker with a CBSS history of the given
// capacity.
func NewTracker(cfg Config, frameRate float64, capacity int) *Tracker {
	return &Tracker{
		cfg:           cfg,
		frameRate:     frameRate,
		cbss:          NewCBSS(capacity, cfg.Alpha, cfg.Tightness),
		meanCoeff:     common.SmoothingCoeff(cfg.MeanWindowSec, frameRate),
		activityCoeff: common.SmoothingCoeff(1.0, frameRate),
		intervals:     common.NewRing(8),
		cvScratch:     make([]float64, 8),
	}
}

// SetPeriod installs a new beat period (in frames) from the tempo
// estimator. The phase reference is untouched; the next prediction
// simply uses the new period.
func (t *Tracker) SetPeriod(periodFrames float64) {
	if periodFrames > 0 {
		t.period = periodFrames
	}
}

// Step advances the tracker by one frame. oss is this frame's onset
// strength sample, the same one pushed to the tempo history.
func (t *Tracker) Step(frame int64, oss float64) Event {
	cur := t.cbss.Update(oss, t.period)
	t.cbssMean += t.meanCoeff * (cur - t.cbssMean)
	t.activity += t.activityCoeff * (oss - t.activity)
	t.confidence *= t.cfg.FrameDecay

	if t.period < 2 {
		return Event{Confidence: t.confidence}
	}

	threshold := t.cfg.ThresholdFactor * t.cbssMean
	live := t.activity > t.cfg.ActivityFloor

	if !t.started {
		if live && t.peakBehind(threshold) {
			t.confirmBeat(frame - 1)
			t.started = true
			return Event{Fired: true, Frame: frame - 1, Confidence: t.confidence}
		}
		return Event{Confidence: t.confidence}
	}

	predicted := t.lastBeatFrame + int64(t.period+0.5)
	early := predicted - int64(t.cfg.EarlyFrac*t.period)
	late := predicted + int64(t.cfg.LateFrac*t.period)

	switch {
	case frame < early:
		return Event{Confidence: t.confidence}

	case frame <= late:
		t.state = StateSearching
		if live && frame-1 >= early && t.peakBehind(threshold) {
			t.confirmBeat(frame - 1)
			return Event{Fired: true, Frame: frame - 1, Confidence: t.confidence}
		}
		return Event{Confidence: t.confidence}

	default:
		// Deadline passed: force the beat at the prediction so phase
		// keeps advancing through dropouts
		t.lastBeatFrame = predicted
		t.confidence = common.Clamp01(t.confidence * t.cfg.ForcedDecay)
		t.state = StateForced
		return Event{Fired: true, Forced: true, Frame: predicted, Confidence: t.confidence}
	}
}

// peakBehind reports a CBSS local maximum at the previous frame above
// the adaptive threshold. Peaks are only recognizable one frame late.
func (t *Tracker) peakBehind(threshold float64) bool {
	if t.cbss.Count() < 3 {
		return false
	}
	prev := t.cbss.Recent(1)
	return prev > t.cbss.Recent(2) && prev >= t.cbss.Recent(0) && prev > threshold
}

// confirmBeat commits a confirmed beat at the given frame.
func (t *Tracker) confirmBeat(frame int64) {
	if t.started {
		t.intervals.Push(float64(frame - t.lastBeatFrame))
	}
	t.lastBeatFrame = frame
	t.confidence = common.Clamp01(t.confidence + t.cfg.ConfidenceBoost)
	t.state = StateLocked
}

// Phase returns the position in the current beat cycle, in [0, 1).
// Before tracking starts it holds its last value.
func (t *Tracker) Phase(frame int64) float64 {
	if !t.started || t.period < 2 {
		return t.lastPhase
	}
	phase := float64(frame-t.lastBeatFrame) / t.period
	phase -= math.Floor(phase)
	if phase >= 1.0 || math.IsNaN(phase) {
		phase = 0.0
	}
	t.lastPhase = phase
	return phase
}

// Confidence returns the current beat confidence in [0, 1].
func (t *Tracker) Confidence() float64 {
	return t.confidence
}

// State returns the current cycle state.
func (t *Tracker) State() State {
	return t.state
}

// Started reports whether a first beat has been confirmed.
func (t *Tracker) Started() bool {
	return t.started
}

// LastBeatFrame returns the most recent beat position.
func (t *Tracker) LastBeatFrame() int64 {
	return t.lastBeatFrame
}

// StabilityCV returns the coefficient of variation of recent confirmed
// beat intervals; lower is steadier. Returns 1 until two intervals
// have been observed.
func (t *Tracker) StabilityCV() float64 {
	n := t.intervals.Count()
	if n < 2 {
		return 1.0
	}
	buf := t.cvScratch[:n]
	t.intervals.CopyChronological(buf)
	mean := common.Mean(buf)
	if mean < 1e-9 {
		return 1.0
	}
	return common.Clamp01(common.StandardDeviation(buf) / mean)
}

// Reset restores startup state.
func (t *Tracker) Reset() {
	t.cbss.Reset()
	t.intervals.Clear()
	t.state = StateSearching
	t.period = 0.0
	t.lastBeatFrame = 0
	t.started = false
	t.confidence = 0.0
	t.cbssMean = 0.0
	t.activity = 0.0
	t.lastPhase = 0.0
}
