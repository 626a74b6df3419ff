package tempo

// CombBank is a bank of resonant comb filters, one per candidate tempo
// bin. Each filter feeds the onset strength signal back onto itself at
// its own period, so the filter whose period matches the input
// accumulates energy fastest. Energies are tracked as slow envelopes
// and read out during the periodic tempo pass.
type CombBank struct {
	feedback  float64
	delays    [][]float64 // one delay line per filter, length = lag
	positions []int
	energies  []float64
	envCoeff  float64
}

// NewCombBank builds one filter per lag (in frames, rounded to at
// least 1). feedback in (0, 1) sets resonance sharpness.
func NewCombBank(lags []float64, feedback float64) *CombBank {
	cb := &CombBank{
		feedback:  feedback,
		delays:    make([][]float64, len(lags)),
		positions: make([]int, len(lags)),
		energies:  make([]float64, len(lags)),
		envCoeff:  0.01,
	}
	for i, lag := range lags {
		n := max(int(lag+0.5), 1)
		cb.delays[i] = make([]float64, n)
	}
	return cb
}

// Process feeds one onset strength sample through every filter.
func (cb *CombBank) Process(x float64) {
	for i := range cb.delays {
		line := cb.delays[i]
		pos := cb.positions[i]

		y := x + cb.feedback*line[pos]
		line[pos] = y
		cb.positions[i] = (pos + 1) % len(line)

		cb.energies[i] += cb.envCoeff * (y*y - cb.energies[i])
	}
}

// Energies returns the per-filter energy envelopes, indexed like the
// lag slice given at construction. The slice is owned by the bank.
func (cb *CombBank) Energies() []float64 {
	return cb.energies
}

// Reset zeroes all delay lines and envelopes.
func (cb *CombBank) Reset() {
	for i := range cb.delays {
		for j := range cb.delays[i] {
			cb.delays[i][j] = 0.0
		}
		cb.positions[i] = 0
		cb.energies[i] = 0.0
	}
}
