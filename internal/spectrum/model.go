package spectrum

// Frame is a single power spectrum produced by the averaging stage. It holds
// one magnitude (dB) per FFT bin, DC-centered, and is read-only to consumers.
type Frame []float64

// Bins returns the number of power bins in the frame.
func (f Frame) Bins() int {
	return len(f)
}

// FrameSink consumes frames pushed by a streaming spectrum source. Process is
// called once per frame, in production order.
type FrameSink interface {
	Process(frame Frame) error
}

// Window is a consistent snapshot of the selector state after a frame has been
// processed.
type Window struct {
	Seq    uint64    `json:"seq"`    // Number of frames processed when the snapshot was taken
	Offset int       `json:"offset"` // First bin of the extracted window
	Width  int       `json:"width"`  // Number of bins in the extracted window
	Max    float64   `json:"max"`    // Peak of the extracted window
	Min    float64   `json:"min"`    // Floor of the extracted window
	Bins   []float64 `json:"bins"`   // Copy of the extracted window
}

// Amplitude returns the peak-to-floor difference of the window.
func (w Window) Amplitude() float64 {
	return w.Max - w.Min
}
