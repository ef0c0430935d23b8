package sweep

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roman-kulish/filter-sweep/internal/metrics"
	"github.com/roman-kulish/filter-sweep/internal/spectrum"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errRejected = errors.New("frequency rejected")

type fakeTuner struct {
	mu sync.Mutex

	sampleRate float64
	tuned      []float64
	started    bool
	stopped    bool

	failAt       float64
	failures     int // number of rejected attempts at failAt, negative means forever
	startErr     error
	sampleRateOK bool
}

func newFakeTuner() *fakeTuner {
	return &fakeTuner{sampleRateOK: true}
}

func (f *fakeTuner) SetCenterFrequency(hz float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAt != 0 && hz == f.failAt && f.failures != 0 {
		f.failures--
		return errRejected
	}
	f.tuned = append(f.tuned, hz)
	return nil
}

func (f *fakeTuner) SetSampleRate(hz float64) error {
	if !f.sampleRateOK {
		return errRejected
	}
	f.sampleRate = hz
	return nil
}

func (f *fakeTuner) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeTuner) Stop() error {
	f.stopped = true
	return nil
}

// fakeWindow produces a frame immediately for every wait. The window peak
// follows the offset so that records can be told apart.
type fakeWindow struct {
	mu      sync.Mutex
	offset  int
	seq     uint64
	offsets []int
	waits   []uint64 // frames waited for per call
	block   bool
}

func (w *fakeWindow) Bins() int  { return DefaultFFTSize }
func (w *fakeWindow) Width() int { return DefaultWindowWidth }

func (w *fakeWindow) SetOffset(offset int) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.offset = offset
	w.offsets = append(w.offsets, offset)
	return w.seq
}

func (w *fakeWindow) WaitFrame(ctx context.Context, after uint64) (spectrum.Window, error) {
	if w.block {
		<-ctx.Done()
		return spectrum.Window{}, ctx.Err()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.waits = append(w.waits, after+1-w.seq)
	w.seq = after + 1
	return spectrum.Window{
		Seq:    w.seq,
		Offset: w.offset,
		Width:  DefaultWindowWidth,
		Max:    float64(w.offset) / 10,
		Min:    -80,
	}, nil
}

func testConfig() Config {
	c := DefaultConfig()
	c.SettleTime = 0
	c.FrameTimeout = time.Second
	return c
}

func TestController_BenchSweep(t *testing.T) {
	tuner := newFakeTuner()
	window := &fakeWindow{}

	var out bytes.Buffer
	csv, err := NewCSVWriter(&out)
	require.NoError(t, err)

	c, err := NewController(testConfig(), tuner, window, WithSink(csv))
	require.NoError(t, err)

	records, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 601)
	assert.Equal(t, 1115e6, records[0].CenterFreq)
	assert.Equal(t, 1145e6, records[600].CenterFreq)
	for i := 1; i < len(records); i++ {
		assert.Equal(t, 5e4, records[i].CenterFreq-records[i-1].CenterFreq)
		assert.Equal(t, i, records[i].Step)
	}

	assert.Equal(t, 12.5e6, tuner.sampleRate)
	assert.True(t, tuner.started)
	assert.True(t, tuner.stopped)
	assert.Len(t, tuner.tuned, 601)

	// first step: the test tone lands in bin 717
	assert.Equal(t, 717, records[0].Offset)
	assert.InDelta(t, 151.7, records[0].Amplitude, 1e-9)

	for _, o := range window.offsets {
		assert.GreaterOrEqual(t, o, 0)
		assert.Less(t, o+DefaultWindowWidth, DefaultFFTSize)
	}

	// header plus one line per record
	assert.Equal(t, 602, bytes.Count(out.Bytes(), []byte("\n")))
}

func TestController_TuningFailureAborts(t *testing.T) {
	tuner := newFakeTuner()
	tuner.failAt = 1115e6 + 300*5e4
	tuner.failures = -1

	var emitted []Record
	sink := SinkFunc(func(rec Record) error {
		emitted = append(emitted, rec)
		return nil
	})

	c, err := NewController(testConfig(), tuner, &fakeWindow{}, WithSink(sink))
	require.NoError(t, err)

	records, err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, &TuningError{})
	assert.ErrorIs(t, err, errRejected)

	var tuningErr *TuningError
	require.ErrorAs(t, err, &tuningErr)
	assert.Equal(t, 300, tuningErr.Step)
	assert.Equal(t, 1130e6, tuningErr.Frequency)
	assert.Equal(t, SettingCenterFrequency, tuningErr.Setting)

	assert.Len(t, records, 300)
	assert.Len(t, emitted, 300)
	assert.True(t, tuner.stopped)
}

func TestController_TuningRetry(t *testing.T) {
	tuner := newFakeTuner()
	tuner.failAt = 1115e6 + 10*5e4
	tuner.failures = 1

	reg := prometheus.NewRegistry()
	m := metrics.NewSweep(reg)

	c, err := NewController(testConfig(), tuner, &fakeWindow{}, WithMetrics(m))
	require.NoError(t, err)

	records, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 601)

	expected := `
# HELP filter_sweep_steps_total Number of completed sweep steps
# TYPE filter_sweep_steps_total counter
filter_sweep_steps_total 601
# HELP filter_sweep_tune_errors_total Number of rejected tuning commands
# TYPE filter_sweep_tune_errors_total counter
filter_sweep_tune_errors_total 0
# HELP filter_sweep_tune_retries_total Number of retried tuning commands
# TYPE filter_sweep_tune_retries_total counter
filter_sweep_tune_retries_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"filter_sweep_steps_total", "filter_sweep_tune_errors_total", "filter_sweep_tune_retries_total"))
}

func TestController_NoRetries(t *testing.T) {
	tuner := newFakeTuner()
	tuner.failAt = 1115e6
	tuner.failures = 1

	cfg := testConfig()
	cfg.TuneRetries = 0

	c, err := NewController(cfg, tuner, &fakeWindow{})
	require.NoError(t, err)

	records, err := c.Run(context.Background())
	assert.ErrorIs(t, err, &TuningError{})
	assert.Empty(t, records)
}

func TestController_SampleRateRejected(t *testing.T) {
	tuner := newFakeTuner()
	tuner.sampleRateOK = false

	c, err := NewController(testConfig(), tuner, &fakeWindow{})
	require.NoError(t, err)

	_, err = c.Run(context.Background())

	var tuningErr *TuningError
	require.ErrorAs(t, err, &tuningErr)
	assert.Equal(t, SettingSampleRate, tuningErr.Setting)
	assert.Equal(t, -1, tuningErr.Step)
	assert.False(t, tuner.started)
}

func TestController_FrameTimeout(t *testing.T) {
	tuner := newFakeTuner()
	cfg := testConfig()
	cfg.FrameTimeout = 20 * time.Millisecond

	c, err := NewController(cfg, tuner, &fakeWindow{block: true})
	require.NoError(t, err)

	records, err := c.Run(context.Background())
	assert.Empty(t, records)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 0, timeoutErr.Step)
	assert.Equal(t, 1115e6, timeoutErr.Frequency)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.Wait)
	assert.True(t, tuner.stopped)
}

func TestController_Cancelled(t *testing.T) {
	tuner := newFakeTuner()
	c, err := NewController(testConfig(), tuner, &fakeWindow{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, records)
	assert.False(t, tuner.started)
}

func TestController_CancelledDuringSettle(t *testing.T) {
	tuner := newFakeTuner()
	cfg := testConfig()
	cfg.SettleTime = time.Minute

	c, err := NewController(cfg, tuner, &fakeWindow{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	records, err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, records)
	assert.True(t, tuner.stopped)
}

func TestController_SinkErrorAborts(t *testing.T) {
	errSink := errors.New("disk full")
	calls := 0
	sink := SinkFunc(func(Record) error {
		calls++
		if calls == 3 {
			return errSink
		}
		return nil
	})

	c, err := NewController(testConfig(), newFakeTuner(), &fakeWindow{}, WithSink(sink))
	require.NoError(t, err)

	records, err := c.Run(context.Background())
	assert.ErrorIs(t, err, errSink)
	assert.Len(t, records, 2)
}

func TestController_WithSelector(t *testing.T) {
	cfg := testConfig()
	cfg.StartFreq = 1129e6
	cfg.EndFreq = 1131e6
	cfg.Step = 1e6

	selector, err := spectrum.NewSelector(cfg.FFTSize, cfg.WindowWidth, 0)
	require.NoError(t, err)

	// feed frames with a tone at the bin the input signal is expected in
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				offset := selector.Offset()
				frame := make(spectrum.Frame, cfg.FFTSize)
				for i := range frame {
					frame[i] = -90
				}
				if offset >= 0 && offset < len(frame) {
					frame[offset] = -20
				}
				_ = selector.Process(frame)
			}
		}
	}()

	c, err := NewController(cfg, newFakeTuner(), selector)
	require.NoError(t, err)

	records, err := c.Run(ctx)
	cancel()
	wg.Wait()

	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, 70.0, rec.Amplitude)
	}
}

func TestController_SettleFrames(t *testing.T) {
	tests := []struct {
		name         string
		settleTime   time.Duration
		settleFrames int
		expect       uint64
	}{
		{"untimed single frame", 0, 1, 2},
		{"untimed several frames", 0, 5, 5},
		{"timed single frame", time.Millisecond, 1, 1},
		{"timed several frames", time.Millisecond, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.StartFreq, cfg.EndFreq = 1129e6, 1131e6
			cfg.Step = 1e6
			cfg.SettleTime = tt.settleTime
			cfg.SettleFrames = tt.settleFrames

			window := &fakeWindow{}
			c, err := NewController(cfg, newFakeTuner(), window)
			require.NoError(t, err)

			_, err = c.Run(context.Background())
			require.NoError(t, err)

			require.Len(t, window.waits, 3)
			for _, n := range window.waits {
				assert.Equal(t, tt.expect, n)
			}
		})
	}
}

func TestNewController_GeometryMismatch(t *testing.T) {
	cfg := testConfig()
	cfg.FFTSize = 2048

	_, err := NewController(cfg, newFakeTuner(), &fakeWindow{})
	assert.ErrorIs(t, err, &ConfigError{})
}

func TestNewController_UnboundedSweep(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"sub-hertz step", func(c *Config) { c.StartFreq, c.EndFreq, c.Step = 1e6, 1e9, 1e-12 }},
		{"NaN step", func(c *Config) { c.Step = math.NaN() }},
		{"infinite end", func(c *Config) { c.EndFreq = math.Inf(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)

			_, err := NewController(cfg, newFakeTuner(), &fakeWindow{})
			assert.ErrorIs(t, err, &ConfigError{})
		})
	}
}

func TestController_AlreadyRunning(t *testing.T) {
	cfg := testConfig()
	cfg.SettleTime = time.Minute

	c, err := NewController(cfg, newFakeTuner(), &fakeWindow{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Run(ctx)
	}()

	require.Eventually(t, func() bool { return c.isRunning.Load() }, time.Second, time.Millisecond)

	_, err = c.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	cancel()
	<-done
}
