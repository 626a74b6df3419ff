package onset

import (
	"math"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/spectral"
)

// NoveltyDetector fires on timbre change: the cosine distance between
// consecutive mel band vectors. It reacts to instrumentation changes
// and section boundaries that leave broadband energy almost untouched.
type NoveltyDetector struct {
	cfg     DetectorConfig
	tracker *thresholdTracker
	prevMel []float64
	primed  bool
}

// NewNoveltyDetector creates a mel novelty detector for numBands mel
// bands.
func NewNoveltyDetector(cfg DetectorConfig, numBands int) *NoveltyDetector {
	return &NoveltyDetector{
		cfg:     cfg,
		tracker: newThresholdTracker(cfg.Threshold),
		prevMel: make([]float64, numBands),
	}
}

func (d *NoveltyDetector) Type() DetectorType {
	return TypeNovelty
}

func (d *NoveltyDetector) Process(f *spectral.Frame) Result {
	if !f.Valid {
		return none()
	}

	n := min(len(f.MelBands), len(d.prevMel))
	dot := 0.0
	normA := 0.0
	normB := 0.0
	for k := 0; k < n; k++ {
		dot += f.MelBands[k] * d.prevMel[k]
		normA += f.MelBands[k] * f.MelBands[k]
		normB += d.prevMel[k] * d.prevMel[k]
	}

	distance := 0.0
	if normA > 1e-9 && normB > 1e-9 {
		similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
		distance = 1.0 - similarity
		if distance < 0 {
			distance = 0.0
		}
	}

	copy(d.prevMel[:n], f.MelBands[:n])

	if !d.primed {
		d.primed = true
		return none()
	}

	return d.tracker.evaluate(distance)
}

func (d *NoveltyDetector) Reset() {
	d.tracker.reset()
	d.primed = false
	for i := range d.prevMel {
		d.prevMel[i] = 0.0
	}
}
