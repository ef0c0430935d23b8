package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filter_sweep"

// Sweep holds the collectors updated by the sweep controller. A nil *Sweep is
// valid and records nothing.
type Sweep struct {
	steps         prometheus.Counter
	tuneErrors    prometheus.Counter
	tuneRetries   prometheus.Counter
	timeouts      prometheus.Counter
	settleSeconds prometheus.Histogram
	frequency     prometheus.Gauge
	amplitude     prometheus.Gauge
}

// NewSweep registers the sweep collectors with reg.
func NewSweep(reg prometheus.Registerer) *Sweep {
	f := promauto.With(reg)

	return &Sweep{
		steps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Number of completed sweep steps",
		}),
		tuneErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tune_errors_total",
			Help:      "Number of rejected tuning commands",
		}),
		tuneRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tune_retries_total",
			Help:      "Number of retried tuning commands",
		}),
		timeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settle_timeouts_total",
			Help:      "Number of settling waits that did not observe a fresh frame in time",
		}),
		settleSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settle_seconds",
			Help:      "Time spent waiting for the spectrum to settle after a frequency change",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		frequency: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "center_frequency_hz",
			Help:      "Receiver center frequency of the last completed step",
		}),
		amplitude: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "amplitude_db",
			Help:      "Peak-to-floor amplitude of the last completed step",
		}),
	}
}

// StepCompleted records a finished measurement.
func (m *Sweep) StepCompleted(frequency, amplitude float64, settle time.Duration) {
	if m == nil {
		return
	}
	m.steps.Inc()
	m.frequency.Set(frequency)
	m.amplitude.Set(amplitude)
	m.settleSeconds.Observe(settle.Seconds())
}

// TuneFailed records a rejected tuning command.
func (m *Sweep) TuneFailed() {
	if m == nil {
		return
	}
	m.tuneErrors.Inc()
}

// TuneRetried records a tuning retry.
func (m *Sweep) TuneRetried() {
	if m == nil {
		return
	}
	m.tuneRetries.Inc()
}

// SettleTimedOut records a settling timeout.
func (m *Sweep) SettleTimedOut() {
	if m == nil {
		return
	}
	m.timeouts.Inc()
}

// Stream holds the collectors updated by a spectrum source. A nil *Stream is
// valid and records nothing.
type Stream struct {
	frames      prometheus.Counter
	frameErrors prometheus.Counter
}

// NewStream registers the stream collectors with reg.
func NewStream(reg prometheus.Registerer) *Stream {
	f := promauto.With(reg)

	return &Stream{
		frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Number of spectrum frames delivered to the window selector",
		}),
		frameErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Number of spectrum frames rejected by the window selector",
		}),
	}
}

// FrameDelivered records a frame handed to the sink and whether it was accepted.
func (m *Stream) FrameDelivered(err error) {
	if m == nil {
		return
	}
	m.frames.Inc()
	if err != nil {
		m.frameErrors.Inc()
	}
}

// Serve exposes the registry on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(fmt.Sprintf("metrics server shutdown: %s", err.Error()))
		}
	}()

	logger.Info("serving metrics", slog.String("addr", addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving metrics: %w", err)
	}
	return nil
}
