package tempo

import (
	"math"
)

// IOIHistogram keeps the frame indices of recent fused transient
// events and scores candidate beat periods by counting event pairs
// whose spacing matches. Unlike the continuous observations it only
// sees discrete detections, which makes it immune to sustained
// spectral motion.
type IOIHistogram struct {
	onsets    []int64
	head      int
	count     int
	windowLen int64 // drop events older than this many frames
}

// NewIOIHistogram tracks up to capacity recent events within the given
// window (in frames).
func NewIOIHistogram(capacity int, windowFrames int64) *IOIHistogram {
	return &IOIHistogram{
		onsets:    make([]int64, capacity),
		windowLen: windowFrames,
	}
}

// Add records a transient event at the given frame index.
func (h *IOIHistogram) Add(frame int64) {
	h.onsets[h.head] = frame
	h.head = (h.head + 1) % len(h.onsets)
	if h.count < len(h.onsets) {
		h.count++
	}
}

// Observe scores one candidate period (in frames) at the given current
// frame. Pairs matching the period within tolerance count fully; pairs
// matching twice the period count half, folding duple subdivisions
// down instead of discarding them. The baseline of 1 keeps the
// observation neutral when no events are recorded.
func (h *IOIHistogram) Observe(now int64, periodFrames, tolerance float64) float64 {
	weight := 1.0
	for i := 0; i < h.count; i++ {
		fi := h.at(i)
		if now-fi > h.windowLen {
			continue
		}
		for j := i + 1; j < h.count; j++ {
			fj := h.at(j)
			if now-fj > h.windowLen {
				continue
			}
			interval := math.Abs(float64(fj - fi))
			if math.Abs(interval-periodFrames) <= tolerance {
				weight += 1.0
			} else if math.Abs(interval-2.0*periodFrames) <= tolerance {
				weight += 0.5
			}
		}
	}
	return weight
}

// at returns the i-th stored event, oldest first.
func (h *IOIHistogram) at(i int) int64 {
	start := h.head - h.count
	return h.onsets[(start+i+2*len(h.onsets))%len(h.onsets)]
}

// Count returns the number of stored events.
func (h *IOIHistogram) Count() int {
	return h.count
}

// Reset drops all recorded events.
func (h *IOIHistogram) Reset() {
	h.head = 0
	h.count = 0
}
