package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roman-kulish/filter-sweep/internal/metrics"
	"github.com/roman-kulish/filter-sweep/internal/sdr"
	"github.com/roman-kulish/filter-sweep/internal/sdr/sim"
	"github.com/roman-kulish/filter-sweep/internal/spectrum"
	"github.com/roman-kulish/filter-sweep/internal/storage"
	"github.com/roman-kulish/filter-sweep/internal/sweep"
)

// WithStore sets the store the sweep records are persisted to
func WithStore(store storage.Store) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithRegistry sets the Prometheus registry the sweep and stream metrics are registered with
func WithRegistry(reg prometheus.Registerer) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.registry = reg
	}
}

// WithMaxBatchSize sets the maximum number of records to store within a
// single database transaction.
func WithMaxBatchSize(size int) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.maxBatchSize = size
	}
}

// Orchestrator wires the receiver, the spectrum window selector and the sweep
// controller together, and fans the records out to the CSV output and the store.
type Orchestrator struct {
	config *Config
	output io.Writer

	logger   *slog.Logger
	store    storage.Store
	registry prometheus.Registerer

	maxBatchSize int
}

// NewOrchestrator creates a new Orchestrator writing CSV records to output
func NewOrchestrator(config *Config, output io.Writer, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		config:       config,
		output:       output,
		logger:       logger,
		maxBatchSize: storage.MaxBatchSize,
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// Run performs a single sweep. Records measured before a failure are returned
// along with the error and are already written to every output.
func (o *Orchestrator) Run(ctx context.Context) (records []sweep.Record, err error) {
	sweepConfig := o.config.Sweep.Config()
	if err = sweepConfig.Validate(); err != nil {
		return nil, err
	}

	receiver, err := sim.New(o.config.Receiver.SimConfig(sweepConfig.FFTSize, sweepConfig.InputSignalFreq))
	if err != nil {
		return nil, sweep.NewConfigError(fmt.Sprintf("creating receiver: %s", err.Error()))
	}

	selector, err := spectrum.NewSelector(sweepConfig.FFTSize, sweepConfig.WindowWidth, 0)
	if err != nil {
		return nil, fmt.Errorf("creating window selector: %w", err)
	}

	var streamMetrics *metrics.Stream
	var sweepMetrics *metrics.Sweep
	if o.registry != nil {
		streamMetrics = metrics.NewStream(o.registry)
		sweepMetrics = metrics.NewSweep(o.registry)
	}

	device := sdr.NewDevice(o.config.Receiver.Name, receiver, o.config.Receiver.Settings(), selector,
		sdr.WithLogger(o.logger),
		sdr.WithMetrics(streamMetrics),
		sdr.WithFrameErrorsThreshold(o.config.Receiver.FrameErrorsThreshold),
	)

	csv, err := sweep.NewCSVWriter(o.output)
	if err != nil {
		return nil, err
	}
	sinks := sweep.MultiSink{csv}

	logger := o.logger
	if o.store != nil {
		runID := uuid.New()

		var sessionID int64
		if sessionID, err = o.store.CreateSession(ctx, runID, sweepConfig); err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}

		recordSink := storage.NewRecordSink(o.store, sessionID, storage.WithBatchSize(o.maxBatchSize))
		defer func() {
			if cErr := recordSink.Close(); cErr != nil {
				o.logger.Error(fmt.Sprintf("failed to flush records: %s", cErr.Error()))
				if err == nil {
					err = cErr
				}
			}
		}()

		// stored first: a record the store rejects is neither printed nor returned
		sinks = append(sweep.MultiSink{recordSink}, sinks...)
		logger = logger.With(slog.String("runID", runID.String()), slog.Int64("sessionID", sessionID))
	}

	controller, err := sweep.NewController(sweepConfig, device, selector,
		sweep.WithLogger(logger),
		sweep.WithSink(sinks),
		sweep.WithMetrics(sweepMetrics),
	)
	if err != nil {
		return nil, err
	}

	return controller.Run(ctx)
}
