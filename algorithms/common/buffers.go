package common

// Ring is a fixed-capacity circular history of scalar samples. Writing
// beyond capacity overwrites the oldest sample; the buffer never grows.
// It is the backing store for the onset-strength and beat-strength
// histories, which are indexed from the newest sample backwards.
type Ring struct {
	data  []float64
	head  int // next write position
	count int
}

// NewRing creates a ring with the given fixed capacity.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		data: make([]float64, capacity),
	}
}

// Push appends a sample, evicting the oldest when full.
func (r *Ring) Push(v float64) {
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// Recent returns the sample `back` positions behind the newest one.
// Recent(0) is the newest sample. Out-of-range lookups return 0.
func (r *Ring) Recent(back int) float64 {
	if back < 0 || back >= r.count {
		return 0.0
	}
	idx := (r.head - 1 - back + 2*len(r.data)) % len(r.data)
	return r.data[idx]
}

// CopyChronological copies up to len(dst) of the most recent samples
// into dst in oldest-to-newest order and returns the number copied.
func (r *Ring) CopyChronological(dst []float64) int {
	n := min(len(dst), r.count)
	for i := 0; i < n; i++ {
		dst[i] = r.Recent(n - 1 - i)
	}
	return n
}

// Count returns the number of valid samples (at most Cap).
func (r *Ring) Count() int {
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int {
	return len(r.data)
}

// Full reports whether the ring has wrapped at least once.
func (r *Ring) Full() bool {
	return r.count == len(r.data)
}

// Clear resets the ring without releasing its storage.
func (r *Ring) Clear() {
	r.head = 0
	r.count = 0
	for i := range r.data {
		r.data[i] = 0.0
	}
}

// MedianRing keeps a short history of recent detection-function values
// and reports their median. Detectors use it as an adaptive threshold
// base that tracks the local signal floor without chasing spikes.
type MedianRing struct {
	ring    *Ring
	scratch []float64
}

// NewMedianRing creates a median tracker over the given history length.
func NewMedianRing(capacity int) *MedianRing {
	return &MedianRing{
		ring:    NewRing(capacity),
		scratch: make([]float64, capacity),
	}
}

// Push records a new value.
func (m *MedianRing) Push(v float64) {
	m.ring.Push(v)
}

// Median returns the median of the recorded history, or 0 when empty.
// Insertion sort into preallocated scratch keeps this allocation-free.
func (m *MedianRing) Median() float64 {
	n := m.ring.Count()
	if n == 0 {
		return 0.0
	}
	for i := 0; i < n; i++ {
		v := m.ring.Recent(i)
		j := i
		for j > 0 && m.scratch[j-1] > v {
			m.scratch[j] = m.scratch[j-1]
			j--
		}
		m.scratch[j] = v
	}
	if n%2 == 1 {
		return m.scratch[n/2]
	}
	return 0.5 * (m.scratch[n/2-1] + m.scratch[n/2])
}

// Count returns the number of recorded values.
func (m *MedianRing) Count() int {
	return m.ring.Count()
}

// Reset clears the history.
func (m *MedianRing) Reset() {
	m.ring.Clear()
}
