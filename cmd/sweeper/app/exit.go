package app

import (
	"context"
	"errors"

	"github.com/roman-kulish/filter-sweep/internal/sdr"
	"github.com/roman-kulish/filter-sweep/internal/sweep"
)

// Process exit codes
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitTuning      = 3
	ExitTimeout     = 4
	ExitInterrupted = 130
)

// ExitCode maps a sweep error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, &sweep.ConfigError{}):
		return ExitConfig
	case errors.Is(err, &sweep.TuningError{}), errors.Is(err, &sdr.SettingError{}):
		return ExitTuning
	case errors.Is(err, &sweep.TimeoutError{}):
		return ExitTimeout
	default:
		return ExitFailure
	}
}
