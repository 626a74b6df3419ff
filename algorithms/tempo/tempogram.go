package tempo

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/RyanBlaney/sonido-rhythm/algorithms/windowing"
)

// Tempogram measures periodicity strength directly in the frequency
// domain: the magnitude of the Hann-windowed onset strength spectrum,
// sampled at each candidate tempo frequency. It is an independent
// second opinion to the lag-domain autocorrelation.
type Tempogram struct {
	fft      *fourier.FFT
	window   *windowing.Hann
	windowed []float64
	coeffs   []complex128
	n        int
}

// NewTempogram creates a tempogram over onset windows of exactly
// windowLen frames.
func NewTempogram(windowLen int) *Tempogram {
	return &Tempogram{
		fft:      fourier.NewFFT(windowLen),
		window:   windowing.NewHann(windowLen, false),
		windowed: make([]float64, windowLen),
		coeffs:   make([]complex128, windowLen/2+1),
		n:        windowLen,
	}
}

// Magnitudes fills dst with the spectrum magnitude at each frequency
// in freqsHz (linearly interpolated between FFT bins). oss must hold
// at least the window length; shorter input is left-padded with its
// mean, which contributes nothing after mean removal.
func (t *Tempogram) Magnitudes(oss []float64, frameRate float64, freqsHz, dst []float64) {
	mean := 0.0
	n := min(len(oss), t.n)
	if n > 0 {
		for _, v := range oss[len(oss)-n:] {
			mean += v
		}
		mean /= float64(n)
	}

	pad := t.n - n
	for i := 0; i < pad; i++ {
		t.windowed[i] = 0.0
	}
	for i := 0; i < n; i++ {
		t.windowed[pad+i] = oss[len(oss)-n+i] - mean
	}
	if err := t.window.ApplyInPlace(t.windowed); err != nil {
		return
	}

	t.fft.Coefficients(t.coeffs, t.windowed)

	binWidth := frameRate / float64(t.n)
	for i, f := range freqsHz {
		if i >= len(dst) {
			break
		}
		pos := f / binWidth
		lo := int(pos)
		if lo < 0 || lo >= len(t.coeffs)-1 {
			dst[i] = 0.0
			continue
		}
		frac := pos - float64(lo)
		mLo := cmplxAbs(t.coeffs[lo])
		mHi := cmplxAbs(t.coeffs[lo+1])
		dst[i] = mLo + frac*(mHi-mLo)
	}
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
