package sweep

import (
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/filter-sweep/internal/spectrum"
)

const (
	DefaultSampleRate      = 12.5e6
	DefaultStartFreq       = 1115e6
	DefaultEndFreq         = 1145e6
	DefaultStep            = 5e4
	DefaultInputSignalFreq = 1130e6

	DefaultFFTSize      = 1024
	DefaultWindowWidth  = 64
	DefaultSettleTime   = 5 * time.Second
	DefaultSettleFrames = 1
	DefaultFrameTimeout = 10 * time.Second
	DefaultTuneRetries  = 1

	// MaxSteps bounds the number of frequency steps of a single sweep
	MaxSteps = 1_000_000

	// stepEpsilon absorbs float rounding when the band is an exact multiple of the step
	stepEpsilon = 1e-9
)

// Config describes a single frequency sweep. It is immutable once the
// controller has been created.
type Config struct {
	SampleRate      float64 `json:"sampleRate"`      // Receiver sample rate, equal to the baseband window width (Hz)
	StartFreq       float64 `json:"startFreq"`       // First center frequency (Hz)
	EndFreq         float64 `json:"endFreq"`         // Last center frequency, inclusive (Hz)
	Step            float64 `json:"step"`            // Center frequency increment (Hz)
	InputSignalFreq float64 `json:"inputSignalFreq"` // Frequency of the fixed test signal (Hz)

	FFTSize     int `json:"fftSize"`     // Number of bins per spectrum frame
	WindowWidth int `json:"windowWidth"` // Number of bins extracted around the test signal

	// SettleTime is the minimum wait after every offset change. It should
	// cover several periods of the averaging stage frame rate.
	SettleTime time.Duration `json:"settleTime"`
	// SettleFrames is the number of frames that must be processed after the
	// offset change before the extrema are read. When SettleTime is zero at
	// least two frames are waited for.
	SettleFrames int `json:"settleFrames"`
	// FrameTimeout bounds the wait for those frames once SettleTime has elapsed.
	FrameTimeout time.Duration `json:"frameTimeout"`

	TuneRetries int  `json:"tuneRetries"` // Extra tuning attempts before a step is aborted
	NoClamp     bool `json:"noClamp"`     // Fail with OutOfRangeError instead of clamping the window offset
}

// DefaultConfig returns the bench defaults: a 30 MHz sweep around a 1130 MHz
// test tone in 50 kHz steps.
func DefaultConfig() Config {
	return Config{
		SampleRate:      DefaultSampleRate,
		StartFreq:       DefaultStartFreq,
		EndFreq:         DefaultEndFreq,
		Step:            DefaultStep,
		InputSignalFreq: DefaultInputSignalFreq,
		FFTSize:         DefaultFFTSize,
		WindowWidth:     DefaultWindowWidth,
		SettleTime:      DefaultSettleTime,
		SettleFrames:    DefaultSettleFrames,
		FrameTimeout:    DefaultFrameTimeout,
		TuneRetries:     DefaultTuneRetries,
	}
}

// Validate checks the sweep bounds and the window geometry.
func (c *Config) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"sample rate", c.SampleRate},
		{"start frequency", c.StartFreq},
		{"end frequency", c.EndFreq},
		{"step", c.Step},
		{"input signal frequency", c.InputSignalFreq},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return NewConfigError(fmt.Sprintf("%s must be finite: %g", f.name, f.value))
		}
	}

	if c.SampleRate <= 0 {
		return NewConfigError(fmt.Sprintf("sample rate must be positive: %g", c.SampleRate))
	}
	if c.Step <= 0 {
		return NewConfigError(fmt.Sprintf("step must be positive: %g", c.Step))
	}
	if c.StartFreq <= 0 {
		return NewConfigError(fmt.Sprintf("start frequency must be positive: %g", c.StartFreq))
	}
	if c.StartFreq > c.EndFreq {
		return NewConfigError(fmt.Sprintf("start frequency must not exceed end frequency: %g > %g", c.StartFreq, c.EndFreq))
	}
	if n := (c.EndFreq - c.StartFreq) / c.Step; n >= MaxSteps {
		return NewConfigError(fmt.Sprintf("sweep has too many steps: %.0f, at most %d allowed", math.Floor(n+stepEpsilon)+1, MaxSteps))
	}
	if c.FFTSize <= 1 {
		return NewConfigError(fmt.Sprintf("fft size must be greater than 1: %d", c.FFTSize))
	}
	// the clamp keeps a one bin margin, so the window must be strictly narrower than the frame
	if c.WindowWidth <= 0 || c.WindowWidth >= c.FFTSize {
		return NewConfigError(fmt.Sprintf("window width must be between 1 and %d: %d", c.FFTSize-1, c.WindowWidth))
	}
	if c.SettleTime < 0 {
		return NewConfigError(fmt.Sprintf("settle time must not be negative: %s", c.SettleTime))
	}
	if c.SettleFrames < 1 {
		return NewConfigError(fmt.Sprintf("settle frames must be at least 1: %d", c.SettleFrames))
	}
	if c.FrameTimeout <= 0 {
		return NewConfigError(fmt.Sprintf("frame timeout must be positive: %s", c.FrameTimeout))
	}
	if c.TuneRetries < 0 {
		return NewConfigError(fmt.Sprintf("tune retries must not be negative: %d", c.TuneRetries))
	}

	return nil
}

// Steps returns the number of frequency steps, both band edges included.
func (c *Config) Steps() int {
	return int(math.Floor((c.EndFreq-c.StartFreq)/c.Step+stepEpsilon)) + 1
}

// Frequency returns the center frequency of step i. It is derived from the
// step index so that rounding errors do not accumulate over long sweeps.
func (c *Config) Frequency(i int) float64 {
	return c.StartFreq + float64(i)*c.Step
}

// BinWidth returns the width of a single FFT bin in Hz.
func (c *Config) BinWidth() float64 {
	return c.SampleRate / float64(c.FFTSize)
}

// Offset returns the window offset that keeps the input signal inside the
// extracted window while the receiver is tuned to freq.
func (c *Config) Offset(freq float64) (int, error) {
	pos := BinPosition(freq, c.InputSignalFreq, c.SampleRate, c.FFTSize)
	if c.NoClamp {
		if pos+c.WindowWidth > c.FFTSize {
			return 0, &spectrum.OutOfRangeError{Offset: pos, Width: c.WindowWidth, Bins: c.FFTSize}
		}
		return pos, nil
	}

	return ClampOffset(pos, c.WindowWidth, c.FFTSize), nil
}
