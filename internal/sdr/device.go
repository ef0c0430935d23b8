package sdr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/filter-sweep/internal/metrics"
	"github.com/roman-kulish/filter-sweep/internal/spectrum"
)

const (
	// FrameErrorsThreshold defines the number of consecutive frame errors allowed
	FrameErrorsThreshold = 5

	frameQueueSize = 1
)

// WithLogger sets the logger for the device
func WithLogger(logger *slog.Logger) func(d *Device) {
	return func(d *Device) {
		d.logger = logger.With(
			slog.String("device", d.receiver.Name()),
			slog.String("deviceID", d.deviceID),
		)
	}
}

// WithFrameErrorsThreshold sets the threshold for consecutive frame errors
func WithFrameErrorsThreshold(threshold int) func(d *Device) {
	return func(d *Device) {
		d.frameErrorsThreshold = threshold
	}
}

// WithMetrics sets the frame stream metrics
func WithMetrics(m *metrics.Stream) func(d *Device) {
	return func(d *Device) {
		d.metrics = m
	}
}

// Device drives a Receiver: it applies the front-end settings, runs the frame
// stream and forwards every frame to the sink. It satisfies the tuning surface
// used by the sweep controller.
type Device struct {
	deviceID string
	receiver Receiver
	settings Settings
	sink     spectrum.FrameSink

	isStreaming atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	mu         sync.Mutex
	sampleRate float64 // last accepted sample rate
	err        error   // error that terminated the stream

	frameErrorsThreshold int
	metrics              *metrics.Stream
	logger               *slog.Logger
}

// NewDevice creates a new Device instance with a discard logger
func NewDevice(deviceID string, r Receiver, settings Settings, sink spectrum.FrameSink, options ...func(d *Device)) *Device {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	d := Device{
		deviceID:             deviceID,
		receiver:             r,
		settings:             settings,
		sink:                 sink,
		logger:               logger,
		frameErrorsThreshold: FrameErrorsThreshold,
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// DeviceID returns the device identifier
func (d *Device) DeviceID() string {
	return d.deviceID
}

// SetCenterFrequency tunes the receiver
func (d *Device) SetCenterFrequency(hz float64) error {
	if err := d.receiver.SetCenterFrequency(hz); err != nil {
		return err
	}

	d.logger.Debug("tuned", slog.String("frequency", humanize.SIWithDigits(hz, 6, "Hz")))
	return nil
}

// SetSampleRate sets the receiver sample rate
func (d *Device) SetSampleRate(hz float64) error {
	if err := d.receiver.SetSampleRate(hz); err != nil {
		return err
	}

	d.mu.Lock()
	d.sampleRate = hz
	d.mu.Unlock()

	return nil
}

// Start applies the front-end settings and starts streaming frames to the sink.
func (d *Device) Start(ctx context.Context) error {
	if !d.isStreaming.CompareAndSwap(false, true) {
		return ErrAlreadyStreaming
	}

	if err := d.apply(); err != nil {
		d.isStreaming.Store(false) // Reset streaming state on error
		return err
	}

	d.setErr(nil)
	ctx, d.cancel = context.WithCancel(ctx)
	frames := make(chan spectrum.Frame, frameQueueSize)

	d.wg.Add(2)
	go d.stream(ctx, frames)
	go d.handleFrames(frames)

	d.logger.Info("streaming started")
	return nil
}

// Stop stops streaming and waits for the stream goroutines to exit. It returns
// the error that terminated the stream, if any.
func (d *Device) Stop() error {
	if !d.isStreaming.Load() {
		return nil // already stopped
	}

	d.cancel()
	d.wg.Wait()
	d.isStreaming.Store(false)

	d.logger.Info("streaming stopped")
	return d.Err()
}

// IsStreaming returns true if the device is streaming
func (d *Device) IsStreaming() bool {
	return d.isStreaming.Load()
}

// Err returns the error that terminated the last stream.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Device) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *Device) apply() error {
	if err := d.receiver.SetGain(d.settings.Gain); err != nil {
		return &SettingError{Setting: "gain", Value: fmt.Sprintf("%g dB", d.settings.Gain), Err: err}
	}
	if err := d.receiver.SetAntenna(d.settings.Antenna); err != nil {
		return &SettingError{Setting: "antenna", Value: d.settings.Antenna, Err: err}
	}

	bandwidth := d.settings.Bandwidth
	if bandwidth == 0 {
		d.mu.Lock()
		bandwidth = d.sampleRate
		d.mu.Unlock()
	}
	if bandwidth > 0 {
		if err := d.receiver.SetBandwidth(bandwidth); err != nil {
			return &SettingError{Setting: "bandwidth", Value: humanize.SIWithDigits(bandwidth, 3, "Hz"), Err: err}
		}
	}

	return nil
}

// stream runs the receiver until ctx is done and closes frames afterward.
func (d *Device) stream(ctx context.Context, frames chan<- spectrum.Frame) {
	defer d.wg.Done()
	defer close(frames)

	if err := d.receiver.Stream(ctx, frames); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Error("stream terminated", slog.String("error", err.Error()))
		d.setErr(fmt.Errorf("streaming: %w", err))
		d.cancel()
	}
}

// handleFrames forwards frames to the sink until the frames channel is closed.
func (d *Device) handleFrames(frames <-chan spectrum.Frame) {
	defer d.wg.Done()

	var frameErrors int
	for frame := range frames {
		if frameErrors >= d.frameErrorsThreshold {
			continue // drain until the stream goroutine exits
		}

		err := d.sink.Process(frame)
		d.metrics.FrameDelivered(err)
		if err != nil {
			frameErrors++
			d.logger.Warn(fmt.Sprintf("error processing frame: %s", err.Error()), slog.Int("bins", frame.Bins()))

			if frameErrors >= d.frameErrorsThreshold {
				d.logger.Error(ErrTooManyFrameErrors.Error())
				d.setErr(ErrTooManyFrameErrors)
				d.cancel()
			}
			continue
		}

		frameErrors = 0 // reset counter
	}
}
