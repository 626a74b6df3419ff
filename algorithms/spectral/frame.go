package spectral

// Frame is the per-block spectral analysis product shared by the onset
// strength generator and every transient detector in the same frame.
// The slices are owned by the FrontEnd and reused; a Frame is only
// valid until the next FrontEnd.Process call.
type Frame struct {
	Magnitudes []float64 // whitened magnitude bins
	RawMags    []float64 // magnitudes before whitening
	Phases     []float64 // per-bin phase in radians
	MelBands   []float64 // log-compressed mel band energies

	Bass float64 // mean whitened magnitude, low band
	Mid  float64 // mean whitened magnitude, mid band
	High float64 // mean whitened magnitude, high band

	Level float64 // block RMS after compression, clamped to [0, 1]

	Valid bool // false until a block has been analyzed
}

// NumBins returns the number of magnitude bins in the frame.
func (f *Frame) NumBins() int {
	return len(f.Magnitudes)
}
