package sim

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roman-kulish/filter-sweep/internal/sdr"
	"github.com/roman-kulish/filter-sweep/internal/spectrum"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReceiver_Setters(t *testing.T) {
	r, err := New(DefaultConfig())
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"frequency in range", func() error { return r.SetCenterFrequency(1130e6) }, nil},
		{"frequency below range", func() error { return r.SetCenterFrequency(1e6) }, sdr.ErrFrequencyOutOfRange},
		{"frequency above range", func() error { return r.SetCenterFrequency(7e9) }, sdr.ErrFrequencyOutOfRange},
		{"sample rate", func() error { return r.SetSampleRate(12.5e6) }, nil},
		{"sample rate too high", func() error { return r.SetSampleRate(100e6) }, sdr.ErrSampleRateOutOfRange},
		{"gain", func() error { return r.SetGain(5) }, nil},
		{"gain at maximum", func() error { return r.SetGain(MaxGain) }, nil},
		{"negative gain", func() error { return r.SetGain(-1) }, sdr.ErrGainOutOfRange},
		{"gain too high", func() error { return r.SetGain(40) }, sdr.ErrGainOutOfRange},
		{"antenna RX2", func() error { return r.SetAntenna(sdr.AntennaRX2) }, nil},
		{"antenna TX/RX", func() error { return r.SetAntenna(sdr.AntennaTXRX) }, nil},
		{"unknown antenna", func() error { return r.SetAntenna("RX1") }, sdr.ErrUnknownAntenna},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	c := DefaultConfig()
	c.FrameRate = 0
	c.AvgAlpha = 2

	_, err := New(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FrameRate")
	assert.Contains(t, err.Error(), "AvgAlpha")
}

func TestFFTShift(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"even", []float64{0, 1, 2, 3}, []float64{2, 3, 0, 1}},
		{"odd", []float64{0, 1, 2, 3, 4}, []float64{3, 4, 0, 1, 2}},
		{"single", []float64{7}, []float64{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FFTShift(nil, tt.in)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("FFTShift(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResponse(t *testing.T) {
	if got := Response(0, 1e6, 4); got != 1 {
		t.Fatalf("passband response = %f, want 1", got)
	}
	if got := Response(0.5e6, 1e6, 4); math.Abs(got-1/math.Sqrt2) > 1e-12 {
		t.Fatalf("edge response = %f, want %f", got, 1/math.Sqrt2)
	}
	if a, b := Response(1e6, 1e6, 4), Response(-1e6, 1e6, 4); a != b {
		t.Fatalf("response is not symmetric: %f != %f", a, b)
	}
	if Response(2e6, 1e6, 4) >= Response(1e6, 1e6, 4) {
		t.Fatal("response must decrease away from the center")
	}
}

func TestSynth_ToneLandsInExpectedBin(t *testing.T) {
	c := DefaultConfig()
	c.AvgAlpha = 1
	s := newSynth(c)

	binWidth := 12.5e6 / float64(c.FFTSize)
	frame := s.frame(tuning{
		center:     c.SignalFreq - 100*binWidth,
		sampleRate: 12.5e6,
		antenna:    sdr.AntennaRX2,
		bandwidth:  12.5e6,
	})

	require.Len(t, frame, c.FFTSize)
	peak := slices.Index(frame, slices.Max(frame))
	assert.Equal(t, c.FFTSize/2+100, peak)
	assert.InDelta(t, c.SignalPower, frame[peak], 0.5)

	// far from the tone only noise is left
	assert.Less(t, frame[10], c.SignalPower-30)
}

func TestSynth_CalibrationAntennaHasNoSignal(t *testing.T) {
	c := DefaultConfig()
	c.AvgAlpha = 1
	s := newSynth(c)

	frame := s.frame(tuning{center: c.SignalFreq, sampleRate: 12.5e6, antenna: sdr.AntennaCAL, bandwidth: 12.5e6})
	assert.Less(t, slices.Max(frame), c.SignalPower-30)
}

func TestSynth_Averaging(t *testing.T) {
	c := DefaultConfig()
	c.AvgAlpha = 0.5
	c.NoiseFloor = -200
	s := newSynth(c)

	on := tuning{center: c.SignalFreq, sampleRate: 12.5e6, antenna: sdr.AntennaRX2, bandwidth: 12.5e6}
	off := on
	off.antenna = sdr.AntennaCAL

	center := c.FFTSize / 2
	first := s.frame(on)[center]
	// half of the linear power is gone after one frame without the tone
	second := s.frame(off)[center]

	assert.InDelta(t, c.SignalPower, first, 0.1)
	assert.InDelta(t, c.SignalPower-10*math.Log10(2), second, 0.1)
}

func TestReceiver_Stream(t *testing.T) {
	c := DefaultConfig()
	c.FrameRate = 1000
	r, err := New(c)
	require.NoError(t, err)

	frames := make(chan spectrum.Frame)
	ctx, cancel := context.WithCancel(context.Background())

	// no sample rate yet
	assert.ErrorIs(t, r.Stream(ctx, frames), ErrSampleRateNotSet)

	require.NoError(t, r.SetSampleRate(12.5e6))

	done := make(chan error)
	go func() {
		done <- r.Stream(ctx, frames)
	}()

	for range 3 {
		select {
		case frame := <-frames:
			assert.Equal(t, c.FFTSize, frame.Bins())
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for frame")
		}
	}

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))
}
