package sweep

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	SettingSampleRate      = "sample rate"
	SettingCenterFrequency = "center frequency"
)

// ConfigError is returned when the sweep configuration is invalid.
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}

func (e *ConfigError) Is(tgt error) bool {
	_, ok := tgt.(*ConfigError)
	return ok
}

// TuningError is returned when the receiver rejects a setting. Step is -1
// for settings applied before the first step.
type TuningError struct {
	Setting   string
	Value     string
	Step      int
	Frequency float64
	Err       error
}

func (e *TuningError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("receiver rejected %s %s: %v", e.Setting, e.Value, e.Err)
	}
	return fmt.Sprintf("receiver rejected %s %s at step %d: %v", e.Setting, e.Value, e.Step, e.Err)
}

func (e *TuningError) Unwrap() error {
	return e.Err
}

func (e *TuningError) Is(tgt error) bool {
	_, ok := tgt.(*TuningError)
	return ok
}

// TimeoutError is returned when no fresh frame arrives within the settling bound.
type TimeoutError struct {
	Step      int
	Frequency float64
	Wait      time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no spectrum frame at %s (step %d) within %s", hz(e.Frequency), e.Step, e.Wait)
}

func (e *TimeoutError) Is(tgt error) bool {
	_, ok := tgt.(*TimeoutError)
	return ok
}

func hz(v float64) string {
	return humanize.SIWithDigits(v, 6, "Hz")
}
