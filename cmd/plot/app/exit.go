package app

import (
	"errors"
	"os"

	"github.com/roman-kulish/filter-sweep/internal/iq"
)

// Process exit codes
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitNotFound = 2
)

// ExitCode maps a plot error to the process exit code. A usage error exits
// with ExitFailure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, &iq.FileNotFoundError{}), errors.Is(err, os.ErrNotExist):
		return ExitNotFound
	default:
		return ExitFailure
	}
}
