package sweep

import "math"

// BinPosition returns the FFT bin, in a DC-centered spectrum of the given size,
// where a signal at inputFreq lands while the receiver is tuned to centerFreq.
// Positions outside the baseband wrap around.
func BinPosition(centerFreq, inputFreq, sampleRate float64, bins int) int {
	binWidth := sampleRate / float64(bins)
	pos := int(math.Round((inputFreq - (centerFreq - sampleRate/2)) / binWidth))

	return (pos%bins + bins) % bins
}

// ClampOffset moves a window start bin so that the window stays inside the
// spectrum with at least one spare bin at the upper edge.
func ClampOffset(pos, width, bins int) int {
	if pos+width >= bins {
		pos = bins - width - 1
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}
