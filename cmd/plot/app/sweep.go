package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/filter-sweep/internal/chart"
	"github.com/roman-kulish/filter-sweep/internal/storage"
)

// RunSweep reads the records of a stored session and plots amplitude against
// the center frequency.
func RunSweep(ctx context.Context, config *SweepConfig, logger *slog.Logger) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	return plotSession(ctx, store, config, logger)
}

func plotSession(ctx context.Context, store storage.Store, config *SweepConfig, logger *slog.Logger) error {
	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.MinFreq != nil && config.MaxFreq != nil:
		opts = append(opts, storage.WithFreqRange(*config.MinFreq, *config.MaxFreq))
		filters = append(filters,
			slog.String("minFreq", chart.FormatFrequency(*config.MinFreq)),
			slog.String("maxFreq", chart.FormatFrequency(*config.MaxFreq)))

	case config.MinFreq != nil:
		opts = append(opts, storage.WithMinFreq(*config.MinFreq))
		filters = append(filters, slog.String("minFreq", chart.FormatFrequency(*config.MinFreq)))

	case config.MaxFreq != nil:
		opts = append(opts, storage.WithMaxFreq(*config.MaxFreq))
		filters = append(filters, slog.String("maxFreq", chart.FormatFrequency(*config.MaxFreq)))
	}

	logger.Info("reader configuration", filters...)

	reader, err := store.ReadRecords(ctx, config.SessionID, opts...)
	if err != nil {
		return err
	}

	session := reader.Session()
	records, err := reader.ReadAll(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("session %d has no records in the requested range", config.SessionID)
	}

	freqs := make([]float64, len(records))
	amplitudes := make([]float64, len(records))
	for i, rec := range records {
		freqs[i] = rec.CenterFreq
		amplitudes[i] = rec.Amplitude
	}

	logger.Info("finished reading records",
		slog.Group("stats",
			slog.Int("records", len(records)),
			slog.String("minFreq", chart.FormatFrequency(freqs[0])),
			slog.String("maxFreq", chart.FormatFrequency(freqs[len(freqs)-1])),
		))

	title := fmt.Sprintf("Sweep %s, %s", session.RunID, session.StartTime.Local().Format(time.DateTime))

	renderer, err := chart.NewRenderer(chart.Config{
		Width:  config.Width,
		Height: config.Height,
		Title:  title,
		X:      chart.Axis{Label: "Center frequency", Format: chart.FormatFrequency},
		Y:      chart.Axis{Label: "Amplitude", Format: chart.FormatDecibel},
	})
	if err != nil {
		return fmt.Errorf("creating chart renderer: %w", err)
	}

	img, err := renderer.Render(chart.Series{X: freqs, Y: amplitudes})
	if err != nil {
		return fmt.Errorf("rendering sweep: %w", err)
	}

	output := config.OutputFile
	if output == "" {
		output = fmt.Sprintf("sweep_session_%d.%s", config.SessionID, config.Format)
	}

	logger.Info("rendering sweep",
		slog.Group("image",
			slog.String("destination", output),
			slog.String("format", string(config.Format)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	return chart.WriteFile(output, img, config.Format)
}
