package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roman-kulish/filter-sweep/internal/chart"
	"github.com/roman-kulish/filter-sweep/internal/iq"
)

// RunIQ decodes the capture and writes one plot per component.
func RunIQ(ctx context.Context, config *IQConfig, logger *slog.Logger) error {
	if config.InputFile == "" {
		return &iq.UsageError{}
	}

	samples, err := iq.ReadFile(config.InputFile)
	if err != nil {
		return err
	}

	logger.Info("decoded samples", slog.String("file", config.InputFile), slog.Int("samples", len(samples)))

	iFile, qFile := config.OutputFiles()
	plots := []struct {
		title  string
		values []float64
		path   string
	}{
		{"I Component of Data", samples.I(), iFile},
		{"Q Component of Data", samples.Q(), qFile},
	}

	for _, p := range plots {
		if err = ctx.Err(); err != nil {
			return err
		}

		renderer, err := chart.NewRenderer(chart.Config{
			Width:  config.Width,
			Height: config.Height,
			Title:  p.title,
			X:      chart.Axis{Label: "Sample"},
			Y:      chart.Axis{Label: "Amplitude"},
		})
		if err != nil {
			return fmt.Errorf("creating chart renderer: %w", err)
		}

		img, err := renderer.Render(chart.Series{Y: p.values})
		if err != nil {
			return fmt.Errorf("rendering %s: %w", p.title, err)
		}
		if err = chart.WriteFile(p.path, img, config.Format); err != nil {
			return fmt.Errorf("writing %s: %w", p.path, err)
		}

		logger.Info("plot written", slog.String("destination", p.path), slog.String("format", string(config.Format)))
	}

	return nil
}
