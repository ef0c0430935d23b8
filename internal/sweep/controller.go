package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/filter-sweep/internal/metrics"
	"github.com/roman-kulish/filter-sweep/internal/spectrum"
)

// minUntimedSettleFrames is the frame count waited for when there is no
// settling delay: the first frame after a retune may have been queued before it.
const minUntimedSettleFrames = 2

// records slice capacity reserved up front, longer sweeps grow it
const maxPreallocRecords = 1024

// ErrAlreadyRunning is returned when Run is called on a controller that is sweeping.
var ErrAlreadyRunning = errors.New("sweep is already running")

// Tuner is the part of the receiver the controller drives.
type Tuner interface {
	SetCenterFrequency(hz float64) error
	SetSampleRate(hz float64) error
	Start(ctx context.Context) error
	Stop() error
}

// Window is the control side of the spectrum window selector.
type Window interface {
	Bins() int
	Width() int
	SetOffset(offset int) uint64
	WaitFrame(ctx context.Context, after uint64) (spectrum.Window, error)
}

// WithLogger sets the logger for the controller
func WithLogger(logger *slog.Logger) func(c *Controller) {
	return func(c *Controller) {
		c.logger = logger.With(slog.String("component", "sweep"))
	}
}

// WithSink sets the sink every record is emitted to as soon as it is measured
func WithSink(sink Sink) func(c *Controller) {
	return func(c *Controller) {
		c.sink = sink
	}
}

// WithMetrics sets the sweep metrics
func WithMetrics(m *metrics.Sweep) func(c *Controller) {
	return func(c *Controller) {
		c.metrics = m
	}
}

// Controller steps the receiver across the configured band. At every step it
// moves the selector window so that it stays on the input signal, waits for the
// averaged spectrum to settle and records the window amplitude.
type Controller struct {
	config Config
	tuner  Tuner
	window Window

	sink    Sink
	metrics *metrics.Sweep
	logger  *slog.Logger

	isRunning atomic.Bool
}

// NewController validates the configuration against the window geometry and
// creates a controller with a discard logger.
func NewController(config Config, tuner Tuner, window Window, options ...func(c *Controller)) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if window.Bins() != config.FFTSize {
		return nil, NewConfigError(fmt.Sprintf("window has %d bins, fft size is %d", window.Bins(), config.FFTSize))
	}
	if window.Width() != config.WindowWidth {
		return nil, NewConfigError(fmt.Sprintf("window is %d bins wide, expected %d", window.Width(), config.WindowWidth))
	}

	c := Controller{
		config: config,
		tuner:  tuner,
		window: window,
		sink:   discardSink{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c, nil
}

// Config returns a copy of the sweep configuration.
func (c *Controller) Config() Config {
	return c.config
}

// Run performs the sweep. Records are returned in step order. On error the
// records measured before the failing step are returned together with it.
// The receiver is stopped on every exit path.
func (c *Controller) Run(ctx context.Context) (records []Record, err error) {
	if !c.isRunning.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer c.isRunning.Store(false)

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	if err = c.tuner.SetSampleRate(c.config.SampleRate); err != nil {
		return nil, &TuningError{Setting: SettingSampleRate, Value: hz(c.config.SampleRate), Step: -1, Err: err}
	}
	if err = c.tuner.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting receiver: %w", err)
	}
	defer func() {
		if stopErr := c.tuner.Stop(); stopErr != nil {
			c.logger.Error("failed to stop receiver", slog.String("error", stopErr.Error()))
			if err == nil {
				err = fmt.Errorf("stopping receiver: %w", stopErr)
			}
		}
	}()

	steps := c.config.Steps()
	records = make([]Record, 0, min(steps, maxPreallocRecords))

	c.logger.Info("starting sweep",
		slog.String("start", hz(c.config.StartFreq)),
		slog.String("end", hz(c.config.EndFreq)),
		slog.String("step", hz(c.config.Step)),
		slog.Int("steps", steps),
	)

	for i := range steps {
		if err = ctx.Err(); err != nil {
			c.logger.Info("sweep cancelled", slog.Int("step", i), slog.Int("records", len(records)))
			return records, err
		}

		rec, err := c.measure(ctx, i)
		if err != nil {
			return records, err
		}
		if err = c.sink.Emit(rec); err != nil {
			return records, fmt.Errorf("emitting record for step %d: %w", i, err)
		}

		records = append(records, rec)
	}

	c.logger.Info("sweep completed", slog.Int("records", len(records)))
	return records, nil
}

func (c *Controller) measure(ctx context.Context, step int) (Record, error) {
	freq := c.config.Frequency(step)

	if err := c.tune(step, freq); err != nil {
		return Record{}, err
	}

	offset, err := c.config.Offset(freq)
	if err != nil {
		return Record{}, fmt.Errorf("window offset at %s: %w", hz(freq), err)
	}
	generation := c.window.SetOffset(offset)

	started := time.Now()
	w, err := c.settle(ctx, step, freq, generation)
	if err != nil {
		return Record{}, err
	}
	settled := time.Since(started)

	rec := Record{
		Step:       step,
		CenterFreq: freq,
		Amplitude:  w.Amplitude(),
		Offset:     w.Offset,
		Max:        w.Max,
		Min:        w.Min,
		Timestamp:  time.Now().UTC(),
	}

	c.metrics.StepCompleted(freq, rec.Amplitude, settled)
	c.logger.Debug("step measured",
		slog.Int("step", step),
		slog.String("frequency", hz(freq)),
		slog.Int("offset", w.Offset),
		slog.Float64("amplitude", rec.Amplitude),
		slog.Duration("settled", settled),
	)

	return rec, nil
}

func (c *Controller) tune(step int, freq float64) error {
	var err error
	for attempt := 0; attempt <= c.config.TuneRetries; attempt++ {
		if attempt > 0 {
			c.metrics.TuneRetried()
			c.logger.Warn("retrying tuning",
				slog.Int("step", step),
				slog.String("frequency", hz(freq)),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		if err = c.tuner.SetCenterFrequency(freq); err == nil {
			return nil
		}
	}

	c.metrics.TuneFailed()
	return &TuningError{
		Setting:   SettingCenterFrequency,
		Value:     hz(freq),
		Step:      step,
		Frequency: freq,
		Err:       err,
	}
}

// settle waits SettleTime and then for SettleFrames frames processed after the
// offset change identified by generation. Without a SettleTime at least
// minUntimedSettleFrames frames are waited for.
func (c *Controller) settle(ctx context.Context, step int, freq float64, generation uint64) (spectrum.Window, error) {
	if c.config.SettleTime > 0 {
		timer := time.NewTimer(c.config.SettleTime)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return spectrum.Window{}, ctx.Err()
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.config.FrameTimeout)
	defer cancel()

	frames := c.config.SettleFrames
	if c.config.SettleTime == 0 {
		frames = max(frames, minUntimedSettleFrames)
	}

	after := generation + uint64(frames) - 1
	w, err := c.window.WaitFrame(waitCtx, after)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			c.metrics.SettleTimedOut()
			return spectrum.Window{}, &TimeoutError{Step: step, Frequency: freq, Wait: c.config.FrameTimeout}
		}
		return spectrum.Window{}, err
	}

	return w, nil
}
