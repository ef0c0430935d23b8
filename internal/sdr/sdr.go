package sdr

import (
	"context"
	"errors"
	"fmt"

	"github.com/roman-kulish/filter-sweep/internal/spectrum"
)

const (
	AntennaTXRX = "TX/RX"
	AntennaRX2  = "RX2"
	AntennaCAL  = "CAL"
)

var (
	// ErrFrequencyOutOfRange is returned when the receiver cannot tune to the requested frequency
	ErrFrequencyOutOfRange = errors.New("frequency out of range")

	// ErrSampleRateOutOfRange is returned when the receiver does not support the requested sample rate
	ErrSampleRateOutOfRange = errors.New("sample rate out of range")

	// ErrGainOutOfRange is returned when the requested gain is outside the receiver gain range
	ErrGainOutOfRange = errors.New("gain out of range")

	// ErrUnknownAntenna is returned when the receiver has no antenna port of the requested name
	ErrUnknownAntenna = errors.New("unknown antenna")

	// ErrTooManyFrameErrors is returned when the frame sink rejected too many consecutive frames
	ErrTooManyFrameErrors = errors.New("too many consecutive frame errors")

	// ErrAlreadyStreaming is returned when Start is called on a streaming device
	ErrAlreadyStreaming = errors.New("device is already streaming")
)

// Receiver is the control surface of a tunable receiver followed by an
// averaged power spectrum stage.
type Receiver interface {
	SetCenterFrequency(hz float64) error
	SetSampleRate(hz float64) error
	SetGain(db float64) error
	SetAntenna(name string) error
	SetBandwidth(hz float64) error

	// Stream sends one power spectrum frame per averaging period to frames
	// until ctx is done. It must not close frames.
	Stream(ctx context.Context, frames chan<- spectrum.Frame) error

	Name() string
}

// Settings are the front-end settings applied once before streaming starts.
type Settings struct {
	Gain      float64 // dB
	Antenna   string  // Antenna port
	Bandwidth float64 // Analog filter bandwidth (Hz), zero means equal to the sample rate
}

// SettingError is returned when the receiver rejects a front-end setting.
type SettingError struct {
	Setting string
	Value   string
	Err     error
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("receiver rejected %s %s: %v", e.Setting, e.Value, e.Err)
}

func (e *SettingError) Unwrap() error {
	return e.Err
}

func (e *SettingError) Is(tgt error) bool {
	_, ok := tgt.(*SettingError)
	return ok
}
