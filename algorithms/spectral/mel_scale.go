package spectral

import (
	"math"
)

// HzToMel converts frequency in Hz to mel scale
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// MelBank maps a magnitude spectrum onto a small set of triangular
// mel-spaced bands with log compression. The band vector is the input
// to timbre-change (novelty) detection, where a perceptual frequency
// spacing matters more than raw bin resolution.
type MelBank struct {
	filters  [][]float64 // one weight vector per band, indexed by bin
	numBands int
}

// NewMelBank builds a triangular mel filter bank over numBins spectrum
// bins for the given sample rate and frequency range.
func NewMelBank(numBands, numBins, sampleRate int, lowFreq, highFreq float64) *MelBank {
	if numBands < 1 {
		numBands = 1
	}
	if highFreq <= lowFreq {
		highFreq = float64(sampleRate) / 2.0
	}

	lowMel := HzToMel(lowFreq)
	highMel := HzToMel(highFreq)

	// Equally spaced mel points, converted back to bin indices
	binPoints := make([]int, numBands+2)
	melStep := (highMel - lowMel) / float64(numBands+1)
	binWidth := float64(sampleRate) / 2.0 / float64(numBins)
	for i := range binPoints {
		hz := MelToHz(lowMel + float64(i)*melStep)
		bin := int(math.Floor(hz/binWidth + 0.5))
		binPoints[i] = min(max(bin, 0), numBins-1)
	}

	filters := make([][]float64, numBands)
	for m := 0; m < numBands; m++ {
		filters[m] = make([]float64, numBins)
		left := binPoints[m]
		center := binPoints[m+1]
		right := binPoints[m+2]

		for k := left; k < center; k++ {
			if center != left {
				filters[m][k] = float64(k-left) / float64(center-left)
			}
		}
		for k := center; k <= right && k < numBins; k++ {
			if right != center {
				filters[m][k] = float64(right-k) / float64(right-center)
			} else if k == center {
				filters[m][k] = 1.0
			}
		}
	}

	return &MelBank{
		filters:  filters,
		numBands: numBands,
	}
}

// NumBands returns the number of mel bands.
func (mb *MelBank) NumBands() int {
	return mb.numBands
}

// Apply projects magnitudes onto the bands, log-compresses each band
// energy into [0, 1] and writes the result into dst. dst must have
// NumBands entries.
func (mb *MelBank) Apply(magnitudes, dst []float64) {
	if len(dst) < mb.numBands {
		return
	}

	for m, filter := range mb.filters {
		sum := 0.0
		n := min(len(filter), len(magnitudes))
		for k := 0; k < n; k++ {
			if filter[k] != 0 {
				sum += filter[k] * magnitudes[k]
			}
		}
		// log(1 + 10x) / log(11) keeps quiet bands resolvable
		dst[m] = math.Log(1.0+10.0*sum) / math.Log(11.0)
		if dst[m] > 1.0 {
			dst[m] = 1.0
		}
	}
}
