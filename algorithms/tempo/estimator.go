package tempo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
)

// Config tunes the tempo estimator.
type Config struct {
	MinBPM  float64 `json:"min_bpm"`
	MaxBPM  float64 `json:"max_bpm"`
	NumBins int     `json:"num_bins"`

	UpdateIntervalMs float64 `json:"update_interval_ms"` // throttle for the full pass
	MinHistorySec    float64 `json:"min_history_sec"`    // decline to estimate before this

	PriorEnabled   bool    `json:"prior_enabled"`
	PriorCenterBPM float64 `json:"prior_center_bpm"`
	PriorWidthBPM  float64 `json:"prior_width_bpm"`
	PriorWeight    float64 `json:"prior_weight"`

	TransitionWidthBPM float64 `json:"transition_width_bpm"`
	PosteriorFloor     float64 `json:"posterior_floor"`

	// Observation weights; 0 disables an observation entirely.
	ACFWeight       float64 `json:"acf_weight"`
	TempogramWeight float64 `json:"tempogram_weight"`
	CombWeight      float64 `json:"comb_weight"`
	IOIWeight       float64 `json:"ioi_weight"`

	CombFeedback  float64 `json:"comb_feedback"`
	PeakRelHeight float64 `json:"peak_rel_height"`

	SilenceEnergyFloor float64 `json:"silence_energy_floor"`
	SilenceMaxFloor    float64 `json:"silence_max_floor"`
	PeriodicityDecay   float64 `json:"periodicity_decay"`
}

// DefaultConfig returns the standard tempo estimation tuning.
func DefaultConfig() Config {
	return Config{
		MinBPM:             60.0,
		MaxBPM:             180.0,
		NumBins:            40,
		UpdateIntervalMs:   500.0,
		MinHistorySec:      1.0,
		PriorEnabled:       true,
		PriorCenterBPM:     120.0,
		PriorWidthBPM:      25.0,
		PriorWeight:        1.0,
		TransitionWidthBPM: 4.0,
		PosteriorFloor:     0.02,
		ACFWeight:          1.0,
		TempogramWeight:    0.5,
		CombWeight:         0.5,
		IOIWeight:          0.3,
		CombFeedback:       0.9,
		PeakRelHeight:      0.3,
		SilenceEnergyFloor: 0.01,
		SilenceMaxFloor:    0.05,
		PeriodicityDecay:   0.8,
	}
}

// Estimate is the published tempo state.
type Estimate struct {
	BPM          float64
	PeriodFrames float64
	Confidence   float64 // posterior concentration, in [0, 1]
	Periodicity  float64 // smoothed autocorrelation strength, in [0, 1]
	Valid        bool
}

// Estimator runs the periodic multi-observation tempo pass over the
// onset strength history. Per-frame cost is limited to feeding the
// comb bank and the IOI event list; everything expensive happens in
// MaybeUpdate at the configured interval.
type Estimator struct {
	cfg       Config
	frameRate float64

	bins    []Bin
	binLags []float64

	acf   *Autocorrelator
	comb  *CombBank
	tgram *Tempogram
	ioi   *IOIHistogram
	post  *Posterior

	ossScratch []float64
	acfObs     []float64
	tgObs      []float64
	combObs    []float64
	ioiObs     []float64
	freqs      []float64
	rayleigh   []float64

	minLag, maxLag  int
	intervalFrames  int64
	minHistory      int
	lastUpdateFrame int64

	periodicity float64
	bpm         float64
	est         Estimate
}

// NewEstimator creates an estimator reading onset windows of up to
// ossCapacity frames at the given frame rate.
func NewEstimator(cfg Config, frameRate float64, ossCapacity int) (*Estimator, error) {
	if cfg.MinBPM <= 0 || cfg.MaxBPM <= cfg.MinBPM {
		return nil, fmt.Errorf("tempo: BPM range [%v, %v] is invalid", cfg.MinBPM, cfg.MaxBPM)
	}
	if cfg.NumBins < 2 {
		return nil, fmt.Errorf("tempo: need at least 2 bins, got %d", cfg.NumBins)
	}

	minLag := frameRate * 60.0 / cfg.MaxBPM
	maxLag := frameRate * 60.0 / cfg.MinBPM
	if int(maxLag)+1 >= ossCapacity {
		return nil, fmt.Errorf("tempo: OSS capacity %d too small for %v BPM at %.1f fps",
			ossCapacity, cfg.MinBPM, frameRate)
	}

	n := cfg.NumBins
	e := &Estimator{
		cfg:        cfg,
		frameRate:  frameRate,
		bins:       make([]Bin, n),
		binLags:    make([]float64, n),
		ossScratch: make([]float64, ossCapacity),
		acfObs:     make([]float64, n),
		tgObs:      make([]float64, n),
		combObs:    make([]float64, n),
		ioiObs:     make([]float64, n),
		freqs:      make([]float64, n),
		rayleigh:   make([]float64, n),
		minLag:     max(int(minLag), 2),
		maxLag:     int(maxLag + 0.5),
	}

	// Lag-uniform bin grid: even resolution in period, which is what
	// both the ACF and the comb bank naturally produce.
	for i := 0; i < n; i++ {
		lag := minLag + (maxLag-minLag)*float64(i)/float64(n-1)
		bpm := frameRate * 60.0 / lag
		e.bins[i] = Bin{BPM: bpm, Lag: lag}
		e.binLags[i] = lag
		e.freqs[i] = bpm / 60.0
	}

	// Rayleigh lag weighting peaked at the typical beat period
	sigma := frameRate * 60.0 / 120.0
	for i, b := range e.bins {
		l := b.Lag
		e.rayleigh[i] = (l / (sigma * sigma)) * math.Exp(-l*l/(2.0*sigma*sigma))
	}
	if m := floats.Max(e.rayleigh); m > 0 {
		for i := range e.rayleigh {
			e.rayleigh[i] /= m
		}
	}

	e.acf = NewAutocorrelator(ossCapacity, e.maxLag*4+2)
	e.comb = NewCombBank(e.binLags, cfg.CombFeedback)
	e.tgram = NewTempogram(ossCapacity)
	e.ioi = NewIOIHistogram(32, int64(frameRate*8.0))
	e.post = NewPosterior(e.bins, cfg.PriorCenterBPM, cfg.PriorWidthBPM,
		cfg.TransitionWidthBPM, cfg.PosteriorFloor)

	e.intervalFrames = max(int64(cfg.UpdateIntervalMs/1000.0*frameRate), 1)
	e.minHistory = int(cfg.MinHistorySec * frameRate)

	return e, nil
}

// ObserveFrame feeds the cheap per-frame observations: the comb bank
// sees every onset strength sample, the IOI list records fused events.
func (e *Estimator) ObserveFrame(oss float64, onsetFired bool, frame int64) {
	if e.cfg.CombWeight > 0 {
		e.comb.Process(oss)
	}
	if onsetFired {
		e.ioi.Add(frame)
	}
}

// Current returns the last published estimate.
func (e *Estimator) Current() Estimate {
	return e.est
}

// MaybeUpdate runs the full tempo pass when the throttle interval has
// elapsed. Returns the new estimate and true when a pass ran (even a
// declined one, which publishes zero confidence).
func (e *Estimator) MaybeUpdate(oss *common.Ring, frame int64) (Estimate, bool) {
	if frame-e.lastUpdateFrame < e.intervalFrames {
		return e.est, false
	}
	e.lastUpdateFrame = frame

	// Decline until enough history has accumulated
	if oss.Count() < e.minHistory {
		e.est.Confidence = 0.0
		e.est.Periodicity = 0.0
		e.est.Valid = false
		return e.est, true
	}

	n := oss.CopyChronological(e.ossScratch)
	window := e.ossScratch[:n]

	// Silence gates: no estimate, decay periodicity toward zero
	if common.Mean(window) < e.cfg.SilenceEnergyFloor || floats.Max(window) < e.cfg.SilenceMaxFloor {
		e.periodicity *= e.cfg.PeriodicityDecay
		e.est.Periodicity = e.periodicity
		e.est.Confidence *= e.cfg.PeriodicityDecay
		return e.est, true
	}

	_, normPeak := e.acf.Compute(window, e.minLag, e.maxLag*4)
	strength := common.Clamp01(normPeak * 1.5)
	e.periodicity = 0.7*e.periodicity + 0.3*strength

	e.buildACFObservation()
	if e.cfg.TempogramWeight > 0 {
		e.tgram.Magnitudes(window, e.frameRate, e.freqs, e.tgObs)
		common.MinMaxNormalize(e.tgObs)
	}
	if e.cfg.CombWeight > 0 {
		copy(e.combObs, e.comb.Energies())
		common.MinMaxNormalize(e.combObs)
	}
	if e.cfg.IOIWeight > 0 {
		e.buildIOIObservation(frame)
	}

	e.post.Begin()
	if e.cfg.PriorEnabled {
		e.post.ApplyStaticPrior(e.cfg.PriorWeight)
	}
	e.post.Apply(e.acfObs, e.cfg.ACFWeight)
	e.post.Apply(e.tgObs, e.cfg.TempogramWeight)
	e.post.Apply(e.combObs, e.cfg.CombWeight)
	e.post.Apply(e.ioiObs, e.cfg.IOIWeight)
	best, conf := e.post.Finish()

	best = e.disambiguateHarmonics(best)

	// A MAP bin with no supporting ACF peak is suspect
	if !e.nearACFPeak(e.bins[best].Lag) {
		conf *= 0.8
	}

	bpm := e.refineBPM(best)
	if e.bpm == 0 || e.periodicity <= 0.25 {
		e.bpm = bpm
	} else {
		e.bpm = 0.7*e.bpm + 0.3*bpm
	}

	e.est = Estimate{
		BPM:          e.bpm,
		PeriodFrames: e.frameRate * 60.0 / e.bpm,
		Confidence:   conf,
		Periodicity:  e.periodicity,
		Valid:        true,
	}
	return e.est, true
}

// buildACFObservation scores each bin by a 4-harmonic comb over the
// inverse-lag ACF, weighted by the Rayleigh lag prior. Harmonic
// summing lets a bin collect evidence from its period multiples, which
// is what pulls a sub-harmonic impulse train up to its duple tempo.
func (e *Estimator) buildACFObservation() {
	for i, b := range e.bins {
		sum := 0.0
		for h := 1; h <= 4; h++ {
			lag := b.Lag * float64(h)
			// Spread window tolerates slight tempo drift
			v := e.acf.At(lag)
			v = math.Max(v, e.acf.At(lag-1))
			v = math.Max(v, e.acf.At(lag+1))
			sum += v / float64(h)
		}
		e.acfObs[i] = sum * e.rayleigh[i]
	}
	common.MinMaxNormalize(e.acfObs)
}

// buildIOIObservation scores each bin by counted event-pair spacings.
func (e *Estimator) buildIOIObservation(frame int64) {
	maxV := 0.0
	for i, b := range e.bins {
		e.ioiObs[i] = e.ioi.Observe(frame, b.Lag, 2.0)
		if e.ioiObs[i] > maxV {
			maxV = e.ioiObs[i]
		}
	}
	if maxV > 0 {
		for i := range e.ioiObs {
			e.ioiObs[i] /= maxV
		}
	}
}

// disambiguateHarmonics nudges the MAP choice off a harmonic when the
// ACF itself clearly prefers a related lag. The half-lag check runs
// unconditionally; the double-lag check only moves toward the prior
// center, so extreme tempos keep their documented bias instead of
// wandering.
func (e *Estimator) disambiguateHarmonics(best int) int {
	lag := e.bins[best].Lag
	cur := math.Max(e.acf.At(lag), 1e-9)

	if half := lag / 2.0; half >= float64(e.minLag) {
		if e.acf.At(half) > 0.5*cur*2.0 {
			// Inverse-lag weighting halves at double tempo, so
			// compare against twice the current value
			best = e.nearestBin(half)
		}
	}

	if e.cfg.PriorEnabled {
		lag = e.bins[best].Lag
		cur = math.Max(e.acf.At(lag), 1e-9)
		if double := lag * 2.0; double <= float64(e.maxLag) {
			doubleBPM := e.frameRate * 60.0 / double
			closer := math.Abs(doubleBPM-e.cfg.PriorCenterBPM) < math.Abs(e.bins[best].BPM-e.cfg.PriorCenterBPM)
			if closer && e.acf.At(double) > 0.6*cur/2.0 {
				best = e.nearestBin(double)
			}
		}
	}

	return best
}

// nearACFPeak reports whether any extracted ACF peak lies within two
// frames of the given lag.
func (e *Estimator) nearACFPeak(lag float64) bool {
	candidates := e.acf.Peaks(e.minLag, e.maxLag, 3, e.cfg.PeakRelHeight)
	for _, c := range candidates {
		if math.Abs(float64(c)-lag) <= 2.0 {
			return true
		}
	}
	return false
}

// nearestBin returns the bin index whose lag is closest to the target.
func (e *Estimator) nearestBin(lag float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, b := range e.bins {
		d := math.Abs(b.Lag - lag)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// refineBPM interpolates the posterior around the MAP bin for
// sub-bin tempo resolution.
func (e *Estimator) refineBPM(best int) float64 {
	bpm := e.bins[best].BPM
	if best > 0 && best < len(e.bins)-1 {
		offset := common.QuadraticPeakInterp(
			e.post.Value(best-1), e.post.Value(best), e.post.Value(best+1))
		if offset >= 0 {
			bpm = common.Lerp(e.bins[best].BPM, e.bins[best+1].BPM, offset)
		} else {
			bpm = common.Lerp(e.bins[best].BPM, e.bins[best-1].BPM, -offset)
		}
	}
	return common.Clamp(bpm, e.cfg.MinBPM, e.cfg.MaxBPM)
}

// Reset restores startup state.
func (e *Estimator) Reset() {
	e.comb.Reset()
	e.ioi.Reset()
	e.post.Reset()
	e.periodicity = 0.0
	e.bpm = 0.0
	e.lastUpdateFrame = 0
	e.est = Estimate{}
}
