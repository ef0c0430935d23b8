package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/filter-sweep/cmd/sweeper/app"
)

var (
	configPath string
	startFreq  float64
	endFreq    float64
	step       float64
	noStore    bool
)

var rootCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Sweep a receiver across a band and record the amplitude of a fixed test signal.",
	Long: `Sweeper steps the receiver center frequency across a band while a fixed test
signal is applied to its input. At every step the spectrum window is moved to
follow the signal and the peak-to-floor amplitude is recorded.

Records are written to stdout as "centre_freq,amplitude" CSV lines, logs go to stderr.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	rootCmd.Flags().Float64Var(&startFreq, "start", 0, "Override the first center frequency (Hz)")
	rootCmd.Flags().Float64Var(&endFreq, "end", 0, "Override the last center frequency (Hz)")
	rootCmd.Flags().Float64Var(&step, "step", 0, "Override the center frequency step (Hz)")
	rootCmd.Flags().BoolVar(&noStore, "no-store", false, "Do not store records in the session database")
}

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))

	exitCode := app.ExitOK
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		config := app.DefaultConfig()
		if configPath != "" {
			var err error
			if config, err = app.LoadConfig(configPath); err != nil {
				logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
				exitCode = app.ExitConfig
				return nil
			}
		}

		flags := cmd.Flags()
		if flags.Changed("start") {
			config.Sweep.StartFreq = startFreq
		}
		if flags.Changed("end") {
			config.Sweep.EndFreq = endFreq
		}
		if flags.Changed("step") {
			config.Sweep.Step = step
		}
		if noStore {
			config.Storage.Enabled = false
		}

		if err := config.Validate(); err != nil {
			logger.Error(err.Error())
			exitCode = app.ExitConfig
			return nil
		}

		level, _ := config.Settings.Level()
		logLevel.Set(level)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := app.Run(ctx, config, os.Stdout, logger); err != nil {
			logger.Error(err.Error())
			exitCode = app.ExitCode(err)
		}
		return nil
	}

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error())
		_ = rootCmd.Usage()
		os.Exit(app.ExitFailure)
	}

	os.Exit(exitCode)
}
