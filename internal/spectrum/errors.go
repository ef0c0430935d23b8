package spectrum

import "fmt"

// OutOfRangeError is returned when a window does not fit into the spectrum,
// either because of its width or because offset+width runs past the last bin.
type OutOfRangeError struct {
	Offset int
	Width  int
	Bins   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("window [%d, %d) out of range for %d bins", e.Offset, e.Offset+e.Width, e.Bins)
}

func (e *OutOfRangeError) Is(tgt error) bool {
	_, ok := tgt.(*OutOfRangeError)
	return ok
}
