// Package sim provides a simulated receiver: a tunable front end with a
// band-pass response around the tuned frequency, an FFT stage and an
// exponentially averaged power spectrum, fed by a fixed test tone.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roman-kulish/filter-sweep/internal/sdr"
	"github.com/roman-kulish/filter-sweep/internal/spectrum"
)

// ErrSampleRateNotSet is returned by Stream when no sample rate has been configured.
var ErrSampleRateNotSet = errors.New("sample rate is not set")

var antennas = map[string]struct{}{
	sdr.AntennaTXRX: {},
	sdr.AntennaRX2:  {},
	sdr.AntennaCAL:  {},
}

// Receiver is a simulated receiver. All setters are safe to call while streaming
// and take effect from the next frame.
type Receiver struct {
	config Config

	mu         sync.Mutex
	center     float64
	sampleRate float64
	gain       float64
	antenna    string
	bandwidth  float64
}

var _ sdr.Receiver = (*Receiver)(nil)

// New creates a simulated receiver tuned to the test signal.
func New(config Config) (*Receiver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Receiver{
		config:  config,
		center:  config.SignalFreq,
		antenna: sdr.AntennaRX2,
	}, nil
}

func (r *Receiver) Name() string {
	return "sim"
}

func (r *Receiver) SetCenterFrequency(hz float64) error {
	if hz < r.config.MinFreq || hz > r.config.MaxFreq {
		return fmt.Errorf("%w: %g Hz", sdr.ErrFrequencyOutOfRange, hz)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.center = hz
	return nil
}

func (r *Receiver) SetSampleRate(hz float64) error {
	if hz <= 0 || hz > r.config.MaxSampleRate {
		return fmt.Errorf("%w: %g S/s", sdr.ErrSampleRateOutOfRange, hz)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sampleRate = hz
	return nil
}

func (r *Receiver) SetGain(db float64) error {
	if db < MinGain || db > MaxGain {
		return fmt.Errorf("%w: %g dB", sdr.ErrGainOutOfRange, db)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.gain = db
	return nil
}

func (r *Receiver) SetAntenna(name string) error {
	if _, ok := antennas[name]; !ok {
		return fmt.Errorf("%w: %q", sdr.ErrUnknownAntenna, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.antenna = name
	return nil
}

func (r *Receiver) SetBandwidth(hz float64) error {
	if hz <= 0 || hz > r.config.MaxSampleRate {
		return fmt.Errorf("invalid bandwidth: %g Hz", hz)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bandwidth = hz
	return nil
}

type tuning struct {
	center     float64
	sampleRate float64
	gain       float64
	antenna    string
	bandwidth  float64
}

func (r *Receiver) tuning() tuning {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := tuning{
		center:     r.center,
		sampleRate: r.sampleRate,
		gain:       r.gain,
		antenna:    r.antenna,
		bandwidth:  r.bandwidth,
	}
	if t.bandwidth == 0 {
		t.bandwidth = t.sampleRate
	}
	return t
}

// Stream produces one averaged power spectrum per frame period until ctx is done.
func (r *Receiver) Stream(ctx context.Context, frames chan<- spectrum.Frame) error {
	if r.tuning().sampleRate == 0 {
		return ErrSampleRateNotSet
	}

	s := newSynth(r.config)
	ticker := time.NewTicker(time.Duration(float64(time.Second) / r.config.FrameRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame := s.frame(r.tuning())

		select {
		case frames <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// synth holds the per-stream signal chain state.
type synth struct {
	config Config

	fft     *fourier.CmplxFFT
	noise   distuv.Normal
	samples []complex128
	coeffs  []complex128
	power   []float64 // linear power, averaged
	primed  bool
	phase   float64 // tone phase carried across frames, radians
}

func newSynth(config Config) *synth {
	n := config.FFTSize

	return &synth{
		config:  config,
		fft:     fourier.NewCmplxFFT(n),
		noise:   distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)},
		samples: make([]complex128, n),
		coeffs:  make([]complex128, n),
		power:   make([]float64, n),
	}
}

// frame synthesizes FFTSize baseband samples for the current tuning and runs
// them through the FFT, power and averaging stages.
func (s *synth) frame(t tuning) spectrum.Frame {
	n := s.config.FFTSize
	fn := float64(n)

	offset := s.config.SignalFreq - t.center
	amplitude := 0.0
	if t.antenna != sdr.AntennaCAL {
		amplitude = math.Pow(10, (s.config.SignalPower+t.gain)/20) * Response(offset, t.bandwidth, s.config.FilterOrder)
	}

	// noise power per bin is NoiseFloor after the FFT, so per sample it is N times larger
	sigma := math.Sqrt(math.Pow(10, (s.config.NoiseFloor+t.gain)/10) * fn / 2)
	step := 2 * math.Pi * offset / t.sampleRate

	for i := range s.samples {
		tone := cmplx.Rect(amplitude, s.phase+step*float64(i))
		s.samples[i] = tone + complex(sigma*s.noise.Rand(), sigma*s.noise.Rand())
	}
	s.phase = math.Mod(s.phase+step*fn, 2*math.Pi)

	s.coeffs = s.fft.Coefficients(s.coeffs, s.samples)

	scale := math.Pow(s.config.RefScale/2, 2)
	alpha := s.config.AvgAlpha
	for i, c := range s.coeffs {
		re, im := real(c), imag(c)
		p := (re*re + im*im) / (fn * fn) * scale
		if s.primed {
			s.power[i] = (1-alpha)*s.power[i] + alpha*p
		} else {
			s.power[i] = p
		}
	}
	s.primed = true

	frame := make(spectrum.Frame, n)
	FFTShift(frame, s.power)
	for i, p := range frame {
		frame[i] = 10 * math.Log10(max(p, 1e-30))
	}

	return frame
}

// Response is the magnitude response of an order n Butterworth band-pass of the
// given bandwidth, evaluated at offset Hz from its center.
func Response(offset, bandwidth float64, order int) float64 {
	if bandwidth <= 0 {
		return 0
	}

	x := offset / (bandwidth / 2)
	return 1 / math.Sqrt(1+math.Pow(x*x, float64(order)))
}
