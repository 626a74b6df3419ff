package common

import "testing"

func TestRingPushAndRecent(t *testing.T) {
	r := NewRing(4)
	if r.Count() != 0 || r.Cap() != 4 {
		t.Fatalf("fresh ring: count=%d cap=%d", r.Count(), r.Cap())
	}

	r.Push(1)
	r.Push(2)
	r.Push(3)
	if got := r.Recent(0); got != 3 {
		t.Errorf("Recent(0) = %v, want 3", got)
	}
	if got := r.Recent(2); got != 1 {
		t.Errorf("Recent(2) = %v, want 1", got)
	}
	if got := r.Recent(3); got != 0 {
		t.Errorf("Recent out of range = %v, want 0", got)
	}
}

func TestRingEviction(t *testing.T) {
	r := NewRing(3)
	for i := 1; i <= 5; i++ {
		r.Push(float64(i))
	}
	if !r.Full() {
		t.Fatal("ring should be full after overfilling")
	}
	if r.Count() != 3 {
		t.Fatalf("count = %d, want 3", r.Count())
	}
	// Oldest two samples evicted
	want := []float64{5, 4, 3}
	for back, w := range want {
		if got := r.Recent(back); got != w {
			t.Errorf("Recent(%d) = %v, want %v", back, got, w)
		}
	}
}

func TestRingCopyChronological(t *testing.T) {
	r := NewRing(3)
	for i := 1; i <= 5; i++ {
		r.Push(float64(i))
	}

	dst := make([]float64, 3)
	n := r.CopyChronological(dst)
	if n != 3 {
		t.Fatalf("copied %d, want 3", n)
	}
	want := []float64{3, 4, 5}
	for i, w := range want {
		if dst[i] != w {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], w)
		}
	}

	// Short destination gets only the most recent samples
	short := make([]float64, 2)
	if n := r.CopyChronological(short); n != 2 {
		t.Fatalf("copied %d, want 2", n)
	}
	if short[0] != 4 || short[1] != 5 {
		t.Errorf("short copy = %v, want [4 5]", short)
	}
}

func TestRingClear(t *testing.T) {
	r := NewRing(2)
	r.Push(1)
	r.Push(2)
	r.Clear()
	if r.Count() != 0 {
		t.Errorf("count after clear = %d", r.Count())
	}
	if got := r.Recent(0); got != 0 {
		t.Errorf("Recent after clear = %v", got)
	}
}

func TestMedianRing(t *testing.T) {
	m := NewMedianRing(5)
	if got := m.Median(); got != 0 {
		t.Errorf("empty median = %v, want 0", got)
	}

	m.Push(3)
	m.Push(1)
	m.Push(2)
	if got := m.Median(); got != 2 {
		t.Errorf("odd median = %v, want 2", got)
	}

	m.Push(4)
	if got := m.Median(); got != 2.5 {
		t.Errorf("even median = %v, want 2.5", got)
	}

	// A spike moves the median far less than the mean
	m.Push(100)
	if got := m.Median(); got != 3 {
		t.Errorf("median with spike = %v, want 3", got)
	}

	m.Reset()
	if m.Count() != 0 {
		t.Errorf("count after reset = %d", m.Count())
	}
}
