// Package audioio carries PCM between a capture callback and the
// analysis loop. The ring is single-producer single-consumer and never
// blocks: the capture side drops samples when the consumer falls
// behind, which for live visuals beats stalling the audio thread.
//
// Typical wiring puts the ring between a device callback and the
// frame loop:
//
//	ring := audioio.NewPCMRing(8 * analyzer.BlockSize())
//
//	// capture callback, audio thread
//	ring.Write(samples)
//
//	// frame loop, analysis goroutine
//	block := make([]float64, analyzer.BlockSize())
//	for ring.ReadBlock(block) {
//		control = analyzer.ProcessBlock(block)
//	}
package audioio

import "sync/atomic"

// PCMRing is a fixed-capacity float64 ring buffer safe for exactly one
// writer goroutine and one reader goroutine. Head and tail are total
// sample counts; the difference is the fill level.
type PCMRing struct {
	buf  []float64
	mask int64

	head atomic.Int64 // total samples written
	tail atomic.Int64 // total samples read

	dropped atomic.Int64
}

// NewPCMRing allocates a ring holding at least capacity samples,
// rounded up to a power of two.
func NewPCMRing(capacity int) *PCMRing {
	if capacity < 1 {
		capacity = 1
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &PCMRing{
		buf:  make([]float64, size),
		mask: int64(size - 1),
	}
}

// Write appends samples from the producer side. When the ring cannot
// hold the whole slice, the excess is dropped and counted; the samples
// that fit are still committed.
func (r *PCMRing) Write(samples []float64) int {
	head := r.head.Load()
	tail := r.tail.Load()
	free := int64(len(r.buf)) - (head - tail)

	n := int64(len(samples))
	if n > free {
		r.dropped.Add(n - free)
		n = free
	}
	for i := int64(0); i < n; i++ {
		r.buf[(head+i)&r.mask] = samples[i]
	}
	// Publish after the data is in place.
	r.head.Store(head + n)
	return int(n)
}

// ReadBlock copies exactly len(dst) samples into dst and returns true,
// or returns false without consuming anything when fewer are buffered.
func (r *PCMRing) ReadBlock(dst []float64) bool {
	head := r.head.Load()
	tail := r.tail.Load()

	n := int64(len(dst))
	if head-tail < n {
		return false
	}
	for i := int64(0); i < n; i++ {
		dst[i] = r.buf[(tail+i)&r.mask]
	}
	r.tail.Store(tail + n)
	return true
}

// Buffered returns the number of samples waiting to be read.
func (r *PCMRing) Buffered() int {
	return int(r.head.Load() - r.tail.Load())
}

// Dropped returns the total samples discarded because the ring was
// full.
func (r *PCMRing) Dropped() int64 {
	return r.dropped.Load()
}

// Clear discards all buffered samples. Consumer side only.
func (r *PCMRing) Clear() {
	r.tail.Store(r.head.Load())
}
