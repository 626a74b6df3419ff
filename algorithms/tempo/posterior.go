package tempo

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
)

// Bin is one discretized tempo hypothesis.
type Bin struct {
	BPM float64
	Lag float64 // beat period in frames
}

// Posterior maintains a probability distribution over tempo bins as a
// discrete forward filter: each pass predicts through a Gaussian
// transition kernel (bounding frame-to-frame tempo jumps), multiplies
// in the weighted observations and an optional static Gaussian prior,
// then renormalizes with a uniform floor so no hypothesis ever dies
// completely.
type Posterior struct {
	bins        []Bin
	prior       []float64   // carried distribution
	staticPrior []float64   // Gaussian tempo prior over bins, max 1
	trans       [][]float64 // trans[i][j]: probability of moving j -> i
	cur         []float64
	floor       float64
}

// NewPosterior builds the filter. priorCenter/priorWidth shape the
// static prior in BPM; transitionWidth (BPM) bounds per-pass movement;
// floor in (0, 1) is the uniform mixing fraction.
func NewPosterior(bins []Bin, priorCenter, priorWidth, transitionWidth, floor float64) *Posterior {
	n := len(bins)
	p := &Posterior{
		bins:        bins,
		prior:       make([]float64, n),
		staticPrior: make([]float64, n),
		trans:       make([][]float64, n),
		cur:         make([]float64, n),
		floor:       floor,
	}

	// Uniform starting belief
	for i := range p.prior {
		p.prior[i] = 1.0 / float64(n)
	}

	prior := distuv.Normal{Mu: priorCenter, Sigma: math.Max(priorWidth, 1.0)}
	maxP := 0.0
	for i, b := range bins {
		p.staticPrior[i] = prior.Prob(b.BPM)
		if p.staticPrior[i] > maxP {
			maxP = p.staticPrior[i]
		}
	}
	if maxP > 0 {
		for i := range p.staticPrior {
			p.staticPrior[i] /= maxP
		}
	}

	kernel := distuv.Normal{Mu: 0, Sigma: math.Max(transitionWidth, 0.5)}
	for i := 0; i < n; i++ {
		p.trans[i] = make([]float64, n)
	}
	// Column-normalize so each source bin distributes exactly its mass
	for j := 0; j < n; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			p.trans[i][j] = kernel.Prob(bins[i].BPM - bins[j].BPM)
			sum += p.trans[i][j]
		}
		if sum > 0 {
			for i := 0; i < n; i++ {
				p.trans[i][j] /= sum
			}
		}
	}

	return p
}

// Begin runs the prediction step: current = transition x prior.
func (p *Posterior) Begin() {
	for i := range p.cur {
		sum := 0.0
		for j := range p.prior {
			sum += p.trans[i][j] * p.prior[j]
		}
		p.cur[i] = sum
	}
}

// Apply multiplies in one observation vector raised to its weight.
// Zeros are floored so a single dissenting observation cannot erase a
// hypothesis outright. A weight of 0 leaves the distribution unchanged.
func (p *Posterior) Apply(obs []float64, weight float64) {
	if weight <= 0 {
		return
	}
	for i := range p.cur {
		v := 0.01
		if i < len(obs) && obs[i] > v {
			v = obs[i]
		}
		p.cur[i] *= math.Pow(v, weight)
	}
}

// ApplyStaticPrior multiplies in the Gaussian tempo prior. This is the
// primary defense against half-time and double-time lock.
func (p *Posterior) ApplyStaticPrior(weight float64) {
	p.Apply(p.staticPrior, weight)
}

// Finish normalizes, mixes in the uniform floor, commits the result as
// the next pass's prior and returns the MAP bin index with the
// posterior concentration as confidence.
func (p *Posterior) Finish() (int, float64) {
	n := len(p.cur)
	sum := 0.0
	for _, v := range p.cur {
		sum += v
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		// Degenerate pass, keep the previous belief
		copy(p.cur, p.prior)
		sum = 1.0
	}

	uniform := 1.0 / float64(n)
	best := 0
	for i := range p.cur {
		p.cur[i] = (1.0-p.floor)*(p.cur[i]/sum) + p.floor*uniform
		if p.cur[i] > p.cur[best] {
			best = i
		}
	}

	copy(p.prior, p.cur)

	conf := (p.cur[best] - uniform) / (1.0 - uniform)
	return best, common.Clamp01(conf)
}

// Value returns the current belief for a bin (valid after Finish).
func (p *Posterior) Value(i int) float64 {
	if i < 0 || i >= len(p.prior) {
		return 0.0
	}
	return p.prior[i]
}

// Reset restores the uniform belief.
func (p *Posterior) Reset() {
	for i := range p.prior {
		p.prior[i] = 1.0 / float64(len(p.prior))
	}
}
