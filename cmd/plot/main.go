package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/filter-sweep/cmd/plot/app"
	"github.com/roman-kulish/filter-sweep/internal/chart"
	"github.com/roman-kulish/filter-sweep/internal/iq"
)

var (
	logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

	imageFormat string
	width       int
	height      int

	iqConfig    = app.NewIQConfig()
	sweepConfig = app.NewSweepConfig()
)

var rootCmd = &cobra.Command{
	Use:           "plot",
	Short:         "Render I/Q captures and stored sweep sessions to images.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format, err := chart.ParseImageFormat(imageFormat)
		if err != nil {
			return err
		}
		iqConfig.Format, sweepConfig.Format = format, format
		iqConfig.Width, sweepConfig.Width = width, width
		iqConfig.Height, sweepConfig.Height = height, height
		return nil
	},
}

var iqCmd = &cobra.Command{
	Use:   "iq FILE",
	Short: "Plot the I and Q components of an interleaved float64 capture",
	Long: `Decodes a file of interleaved little-endian float64 values (I0 Q0 I1 Q1 ...)
and writes <prefix>_i.<format> and <prefix>_q.<format>.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return &iq.UsageError{Usage: cmd.UseLine()}
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		iqConfig.InputFile = args[0]
		return app.RunIQ(cmd.Context(), iqConfig, logger)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Plot amplitude against center frequency for a stored sweep session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("min-freq") {
			v, _ := flags.GetFloat64("min-freq")
			sweepConfig.MinFreq = &v
		}
		if flags.Changed("max-freq") {
			v, _ := flags.GetFloat64("max-freq")
			sweepConfig.MaxFreq = &v
		}
		return app.RunSweep(cmd.Context(), sweepConfig, logger)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&imageFormat, "format", "f", string(chart.ImagePNG), "Output image format. [png, jpeg]")
	pf.IntVar(&width, "width", 1200, "Image width in pixels")
	pf.IntVar(&height, "height", 600, "Image height in pixels")

	iqCmd.Flags().StringVarP(&iqConfig.OutputPrefix, "output", "o", "", "Output file prefix, defaults to the input path without extension")

	f := sweepCmd.Flags()
	f.StringVar(&sweepConfig.DBPath, "db", "", "Path to the session database file")
	f.Int64VarP(&sweepConfig.SessionID, "session", "s", 1, "Session ID")
	f.StringVarP(&sweepConfig.OutputFile, "output", "o", "", "Path to the output file")
	f.Float64("min-freq", 0, "Lowest center frequency to plot (Hz)")
	f.Float64("max-freq", 0, "Highest center frequency to plot (Hz)")
	_ = sweepCmd.MarkFlagRequired("db")

	rootCmd.AddCommand(iqCmd, sweepCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err != nil {
		logger.Error(err.Error())

		if errors.Is(err, &iq.UsageError{}) {
			_ = cmd.Usage()
		}

		cancel()
		os.Exit(app.ExitCode(err))
	}
}
