// Package beat tracks beat times and phase from the onset strength
// signal and the current tempo estimate, using a cumulative beat
// strength signal (CBSS) and an explicit locked/searching/forced
// state machine with a hard decision deadline per cycle.
package beat

import (
	"math"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/common"
)

// CBSS maintains the cumulative beat strength signal: each new sample
// blends the instantaneous onset strength with the strongest
// log-Gaussian-weighted CBSS value one beat period in the past. Onsets
// that land where a beat was predicted reinforce themselves; off-grid
// onsets fade.
type CBSS struct {
	ring      *common.Ring
	alpha     float64 // weight of the recursive term
	tightness float64 // sharpness of the log-Gaussian window
}

// NewCBSS creates the signal with a fixed history capacity.
func NewCBSS(capacity int, alpha, tightness float64) *CBSS {
	return &CBSS{
		ring:      common.NewRing(capacity),
		alpha:     alpha,
		tightness: tightness,
	}
}

// Update appends the CBSS sample for the current frame and returns it.
// periodFrames is the current beat period; when no tempo is known yet
// the signal degenerates to the plain onset strength.
func (c *CBSS) Update(oss, periodFrames float64) float64 {
	if periodFrames < 2 {
		c.ring.Push(oss)
		return oss
	}

	// Search one beat period back, from half to double the period
	lo := max(int(periodFrames/2.0), 1)
	hi := min(int(periodFrames*2.0), c.ring.Count())

	best := 0.0
	for w := lo; w <= hi; w++ {
		logRatio := math.Log(float64(w) / periodFrames)
		g := math.Exp(-0.5 * c.tightness * c.tightness * logRatio * logRatio)
		v := g * c.ring.Recent(w-1)
		if v > best {
			best = v
		}
	}

	val := (1.0-c.alpha)*oss + c.alpha*best
	c.ring.Push(val)
	return val
}

// Recent returns the CBSS sample `back` frames behind the newest.
func (c *CBSS) Recent(back int) float64 {
	return c.ring.Recent(back)
}

// Count returns the number of valid samples.
func (c *CBSS) Count() int {
	return c.ring.Count()
}

// Reset clears the history.
func (c *CBSS) Reset() {
	c.ring.Clear()
}
