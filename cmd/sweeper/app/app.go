package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/roman-kulish/filter-sweep/internal/metrics"
	"github.com/roman-kulish/filter-sweep/internal/storage"
	"github.com/roman-kulish/filter-sweep/internal/sweep"
)

// Run performs the sweep described by config, writing CSV records to output.
func Run(ctx context.Context, config *Config, output io.Writer, logger *slog.Logger) (err error) {
	var options []func(*Orchestrator)

	if config.Storage.Enabled {
		var store *storage.SqliteStore
		var dbPath string
		if store, dbPath, err = createStorage(&config.Storage); err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer func() {
			if cErr := store.Close(); cErr != nil && err == nil {
				err = fmt.Errorf("closing storage: %w", cErr)
			}
		}()

		logger.Info("storing records", slog.String("path", dbPath))
		options = append(options, WithStore(store), WithMaxBatchSize(config.Storage.MaxBatchSize))
	}

	if config.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		options = append(options, WithRegistry(reg))

		metricsCtx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(metricsCtx, config.Metrics.Listen, reg, logger); err != nil {
				logger.Error(err.Error())
			}
		}()
		defer func() {
			cancel()
			wg.Wait()
		}()
	}

	started := time.Now()
	records, err := NewOrchestrator(config, output, logger, options...).Run(ctx)

	logger.Info("sweep finished",
		slog.Int("records", len(records)),
		slog.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)

	if err != nil {
		logFailure(logger, err)
	}
	return err
}

func logFailure(logger *slog.Logger, err error) {
	var tuningErr *sweep.TuningError
	var timeoutErr *sweep.TimeoutError

	switch {
	case errors.As(err, &tuningErr) && tuningErr.Step >= 0:
		logger.Error("sweep aborted: tuning failed",
			slog.Int("step", tuningErr.Step),
			slog.String("frequency", humanize.SIWithDigits(tuningErr.Frequency, 6, "Hz")),
		)
	case errors.As(err, &timeoutErr):
		logger.Error("sweep aborted: no spectrum frame",
			slog.Int("step", timeoutErr.Step),
			slog.String("frequency", humanize.SIWithDigits(timeoutErr.Frequency, 6, "Hz")),
			slog.Duration("wait", timeoutErr.Wait),
		)
	case errors.Is(err, context.Canceled):
		logger.Warn("sweep interrupted")
	}
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	dbPath := config.DataDirectory
	if dbPath == "" {
		dbPath = defaultDataDirectory
	}
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(wd, dbPath)
	}

	stat, err := os.Stat(dbPath)
	switch {
	case os.IsNotExist(err):
		if err = os.MkdirAll(dbPath, 0o755); err != nil {
			return nil, "", fmt.Errorf("creating storage directory '%s': %w", dbPath, err)
		}
	case err != nil:
		return nil, "", fmt.Errorf("checking storage directory '%s': %w", dbPath, err)
	case !stat.IsDir():
		return nil, "", fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, storage.SessionFileName(time.Now()))
	return storage.NewSqliteStore(dbPath), dbPath, nil
}
