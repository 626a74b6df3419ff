package rhythm

import (
	"fmt"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/beat"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/onset"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
	"github.com/RyanBlaney/sonido-rhythm/algorithms/tempo"
	"github.com/RyanBlaney/sonido-rhythm/logging"
)

// Analyzer owns the entire rhythm pipeline. It is constructed once,
// holds all buffers and per-detector state exclusively, and is driven
// by a single caller feeding fixed-size PCM blocks. Nothing in the
// per-frame path blocks or returns an error; degraded input degrades
// the output instead.
type Analyzer struct {
	cfg       Config
	frameRate float64

	frontEnd  *spectral.FrontEnd
	strength  *onset.StrengthGenerator
	ensemble  *onset.Ensemble
	ossRing   *common.Ring
	estimator *tempo.Estimator
	tracker   *beat.Tracker
	synth     *synthesizer
	logger    logging.Logger

	frame     int64
	lastEvent beat.Event
	control   AudioControl
}

// NewAnalyzer validates the configuration and allocates every buffer
// the pipeline will ever need.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	frontEnd, err := spectral.NewFrontEnd(cfg.FrontEnd)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	frameRate := frontEnd.FrameRate()
	numBins := frontEnd.NumBins()
	ossCap := int(cfg.OSSBufferSec * frameRate)

	estimator, err := tempo.NewEstimator(cfg.Tempo, frameRate, ossCap)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	a := &Analyzer{
		cfg:       cfg,
		frameRate: frameRate,
		frontEnd:  frontEnd,
		strength: onset.NewStrengthGenerator(cfg.Onset, numBins,
			cfg.FrontEnd.BassHighBin, cfg.FrontEnd.MidHighBin),
		ensemble:  onset.NewEnsemble(cfg.Ensemble, frameRate, numBins, cfg.FrontEnd.MelBands),
		ossRing:   common.NewRing(ossCap),
		estimator: estimator,
		tracker:   beat.NewTracker(cfg.Beat, frameRate, ossCap),
		synth:     newSynthesizer(cfg.Output, frameRate),
		logger:    logging.WithFields(logging.Fields{"component": "rhythm"}),
	}

	a.logger.Info("analyzer ready", logging.Fields{
		"sample_rate": cfg.FrontEnd.SampleRate,
		"block_size":  cfg.FrontEnd.BlockSize,
		"frame_rate":  frameRate,
		"oss_frames":  ossCap,
	})
	return a, nil
}

// ProcessBlock analyzes one PCM block and returns the control record
// for the frame it produced. Blocks of the wrong size yield the
// previous record untouched.
func (a *Analyzer) ProcessBlock(block []float64) AudioControl {
	frame := a.frontEnd.Process(block)
	if !frame.Valid {
		return a.control
	}

	// The onset sample and the ensemble event come from this same
	// spectral frame; the tracker consumes this frame's sample, never
	// a stale one.
	oss := a.strength.Process(frame)
	a.ossRing.Push(oss)

	nowMs := float64(a.frame) * 1000.0 / a.frameRate
	ens := a.ensemble.Process(frame, nowMs)

	a.estimator.ObserveFrame(oss, ens.Fired, a.frame)
	if est, ran := a.estimator.MaybeUpdate(a.ossRing, a.frame); ran && est.Valid {
		a.tracker.SetPeriod(est.PeriodFrames)
		a.ensemble.SetBeatPeriodMs(est.PeriodFrames * 1000.0 / a.frameRate)
		a.logger.Debug("tempo update", logging.Fields{
			"bpm":         est.BPM,
			"confidence":  est.Confidence,
			"periodicity": est.Periodicity,
		})
	}

	event := a.tracker.Step(a.frame, oss)
	phase := a.tracker.Phase(a.frame)

	confirmed := event.Fired && !event.Forced
	a.lastEvent = event
	a.control = a.synth.synthesize(frame.Level, ens, phase, confirmed,
		a.estimator.Current(), a.tracker.Confidence())

	a.frame++
	return a.control
}

// Control returns the most recent control record.
func (a *Analyzer) Control() AudioControl {
	return a.control
}

// BPM returns the current tempo estimate, 0 until one exists.
func (a *Analyzer) BPM() float64 {
	return a.estimator.Current().BPM
}

// LastEvent returns the beat event from the most recent frame.
func (a *Analyzer) LastEvent() beat.Event {
	return a.lastEvent
}

// BeatState returns the tracker's cycle state.
func (a *Analyzer) BeatState() beat.State {
	return a.tracker.State()
}

// StabilityCV returns the coefficient of variation of recent confirmed
// beat intervals, a diagnostic for how steady the lock is.
func (a *Analyzer) StabilityCV() float64 {
	return a.tracker.StabilityCV()
}

// FrameRate returns frames per second.
func (a *Analyzer) FrameRate() float64 {
	return a.frameRate
}

// BlockSize returns the PCM block size ProcessBlock expects.
func (a *Analyzer) BlockSize() int {
	return a.cfg.FrontEnd.BlockSize
}

// Frame returns the number of frames processed so far.
func (a *Analyzer) Frame() int64 {
	return a.frame
}

// Reset restores startup state without reallocating.
func (a *Analyzer) Reset() {
	a.frontEnd.Reset()
	a.strength.Reset()
	a.ensemble.Reset()
	a.ossRing.Clear()
	a.estimator.Reset()
	a.tracker.Reset()
	a.synth.reset()
	a.frame = 0
	a.lastEvent = beat.Event{}
	a.control = AudioControl{}
}
