package sim

import (
	"errors"
	"fmt"
)

const (
	DefaultFFTSize     = 1024
	DefaultFrameRate   = 10   // frames per second
	DefaultAvgAlpha    = 0.01 // single pole IIR coefficient of the averaging stage
	DefaultRefScale    = 2
	DefaultSignalFreq  = 1130e6
	DefaultSignalPower = -30 // dB
	DefaultNoiseFloor  = -90 // dB per bin
	DefaultFilterOrder = 4

	// front-end limits of a UBX-40 daughterboard behind a USRP N200
	DefaultMinFreq       = 10e6
	DefaultMaxFreq       = 6e9
	DefaultMaxSampleRate = 25e6
	MinGain              = 0
	MaxGain              = 31.5
)

// Config describes the simulated receiver and the test signal fed into it.
type Config struct {
	FFTSize   int     // Bins per frame
	FrameRate float64 // Frames per second
	AvgAlpha  float64 // Averaging coefficient, 1 disables averaging
	RefScale  float64 // Full scale reference of the power conversion

	SignalFreq  float64 // Test tone frequency (Hz)
	SignalPower float64 // Test tone power at the antenna port (dB)
	NoiseFloor  float64 // Noise power per bin (dB)
	FilterOrder int     // Order of the Butterworth response around the tuned frequency

	MinFreq       float64 // Tuning range (Hz)
	MaxFreq       float64
	MaxSampleRate float64

	Seed uint64 // Noise generator seed
}

// DefaultConfig returns a receiver matching the bench setup.
func DefaultConfig() Config {
	return Config{
		FFTSize:       DefaultFFTSize,
		FrameRate:     DefaultFrameRate,
		AvgAlpha:      DefaultAvgAlpha,
		RefScale:      DefaultRefScale,
		SignalFreq:    DefaultSignalFreq,
		SignalPower:   DefaultSignalPower,
		NoiseFloor:    DefaultNoiseFloor,
		FilterOrder:   DefaultFilterOrder,
		MinFreq:       DefaultMinFreq,
		MaxFreq:       DefaultMaxFreq,
		MaxSampleRate: DefaultMaxSampleRate,
		Seed:          1,
	}
}

func (c *Config) Validate() error {
	var errs []error

	if c.FFTSize < 2 {
		errs = append(errs, fmt.Errorf("sim.Config.FFTSize: must be at least 2: %d", c.FFTSize))
	}
	if c.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("sim.Config.FrameRate: must be positive: %g", c.FrameRate))
	}
	if c.AvgAlpha <= 0 || c.AvgAlpha > 1 {
		errs = append(errs, fmt.Errorf("sim.Config.AvgAlpha: must be in (0, 1]: %g", c.AvgAlpha))
	}
	if c.RefScale <= 0 {
		errs = append(errs, fmt.Errorf("sim.Config.RefScale: must be positive: %g", c.RefScale))
	}
	if c.FilterOrder < 1 {
		errs = append(errs, fmt.Errorf("sim.Config.FilterOrder: must be at least 1: %d", c.FilterOrder))
	}
	if c.MinFreq <= 0 || c.MinFreq >= c.MaxFreq {
		errs = append(errs, fmt.Errorf("sim.Config: invalid tuning range: %g - %g", c.MinFreq, c.MaxFreq))
	}
	if c.MaxSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sim.Config.MaxSampleRate: must be positive: %g", c.MaxSampleRate))
	}

	return errors.Join(errs...)
}
