package sim

// FFTShift moves the zero frequency bin of src to the center of dst, so that
// bin 0 of dst is the lowest frequency of the baseband. dst and src must have
// the same length and must not overlap.
func FFTShift(dst, src []float64) []float64 {
	n := len(src)
	if dst == nil {
		dst = make([]float64, n)
	}

	half := n / 2
	copy(dst, src[n-half:])
	copy(dst[half:], src[:n-half])

	return dst
}
