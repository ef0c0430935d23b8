package spectrum

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// ErrFrameSize is returned when a frame does not match the configured number of bins.
var ErrFrameSize = errors.New("unexpected frame size")

// Selector extracts a fixed-width contiguous window of bins from every frame it
// processes and keeps the extrema of the most recent window. Max and Min are
// overwritten on every frame, they are never accumulated across frames.
//
// Selector is safe for concurrent use: the streaming side calls Process while
// the control side moves the offset and waits for fresh frames.
type Selector struct {
	bins int

	mu     sync.Mutex
	offset int
	width  int

	// state of the most recently processed frame
	window       []float64
	windowOffset int
	max          float64
	min          float64
	seq          uint64
	notify       chan struct{} // closed and replaced after every processed frame
}

// NewSelector creates a selector for frames of the given number of bins.
// Extrema are NaN until the first frame has been processed.
func NewSelector(bins, width, offset int) (*Selector, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("invalid number of bins: %d", bins)
	}
	if width <= 0 || width > bins {
		return nil, &OutOfRangeError{Offset: offset, Width: width, Bins: bins}
	}

	return &Selector{
		bins:         bins,
		offset:       offset,
		width:        width,
		windowOffset: offset,
		max:          math.NaN(),
		min:          math.NaN(),
		notify:       make(chan struct{}),
	}, nil
}

// Bins returns the expected frame size.
func (s *Selector) Bins() int {
	return s.bins
}

// Width returns the window width in bins.
func (s *Selector) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

// SetWidth changes the window width. Takes effect from the next frame.
func (s *Selector) SetWidth(width int) error {
	if width <= 0 || width > s.bins {
		return &OutOfRangeError{Offset: s.Offset(), Width: width, Bins: s.bins}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	return nil
}

// Offset returns the first bin of the window.
func (s *Selector) Offset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// SetOffset moves the window start bin. The offset is not range-checked here;
// a window that does not fit makes Process fail. The returned generation is
// the sequence number at the time of the change: every frame with a sequence
// number greater than it was extracted at the new offset.
func (s *Selector) SetOffset(offset int) (generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = offset
	return s.seq
}

// Process extracts bins [offset, offset+width) from the frame and replaces the
// current extrema with the extrema of this window.
func (s *Selector) Process(frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(frame) != s.bins {
		return fmt.Errorf("%w: got %d bins, expected %d", ErrFrameSize, len(frame), s.bins)
	}
	if s.offset < 0 || s.offset+s.width > s.bins {
		return &OutOfRangeError{Offset: s.offset, Width: s.width, Bins: s.bins}
	}

	window := frame[s.offset : s.offset+s.width]
	s.window = append(s.window[:0], window...)
	s.windowOffset = s.offset
	s.max = floats.Max(window)
	s.min = floats.Min(window)
	s.seq++

	close(s.notify)
	s.notify = make(chan struct{})

	return nil
}

// Max returns the peak of the most recent window, NaN before the first frame.
func (s *Selector) Max() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max
}

// Min returns the floor of the most recent window, NaN before the first frame.
func (s *Selector) Min() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.min
}

// Seq returns the number of frames processed so far.
func (s *Selector) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Snapshot returns a copy of the current state.
func (s *Selector) Snapshot() Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// WaitFrame blocks until a frame with a sequence number greater than after has
// been processed and returns the state as of that frame. It returns the context
// error if ctx is done first.
func (s *Selector) WaitFrame(ctx context.Context, after uint64) (Window, error) {
	for {
		s.mu.Lock()
		if s.seq > after {
			w := s.snapshotLocked()
			s.mu.Unlock()
			return w, nil
		}
		notify := s.notify
		s.mu.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return Window{}, ctx.Err()
		}
	}
}

func (s *Selector) snapshotLocked() Window {
	bins := make([]float64, len(s.window))
	copy(bins, s.window)

	return Window{
		Seq:    s.seq,
		Offset: s.windowOffset,
		Width:  len(s.window),
		Max:    s.max,
		Min:    s.min,
		Bins:   bins,
	}
}
