package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/filter-sweep/internal/sdr"
	"github.com/roman-kulish/filter-sweep/internal/sdr/sim"
	"github.com/roman-kulish/filter-sweep/internal/storage"
	"github.com/roman-kulish/filter-sweep/internal/sweep"
)

const defaultDataDirectory = "data"

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Receiver ReceiverConfig `yaml:"receiver"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// SweepConfig represents the frequency sweep
type SweepConfig struct {
	SampleRate      float64  `yaml:"sampleRate"`
	StartFreq       float64  `yaml:"startFreq"`
	EndFreq         float64  `yaml:"endFreq"`
	Step            float64  `yaml:"step"`
	InputSignalFreq float64  `yaml:"inputSignalFreq"`
	FFTSize         int      `yaml:"fftSize"`
	WindowWidth     int      `yaml:"windowWidth"`
	SettleTime      Duration `yaml:"settleTime"`
	SettleFrames    int      `yaml:"settleFrames"`
	FrameTimeout    Duration `yaml:"frameTimeout"`
	TuneRetries     int      `yaml:"tuneRetries"`
	ClampOffsets    bool     `yaml:"clampOffsets"`
}

// ReceiverConfig represents the receiver front end and the simulated test signal
type ReceiverConfig struct {
	Name                 string  `yaml:"name"`
	Gain                 float64 `yaml:"gain"`
	Antenna              string  `yaml:"antenna"`
	Bandwidth            float64 `yaml:"bandwidth"`
	FrameRate            float64 `yaml:"frameRate"`
	AvgAlpha             float64 `yaml:"avgAlpha"`
	RefScale             float64 `yaml:"refScale"`
	SignalPower          float64 `yaml:"signalPower"`
	NoiseFloor           float64 `yaml:"noiseFloor"`
	FilterOrder          int     `yaml:"filterOrder"`
	Seed                 uint64  `yaml:"seed"`
	FrameErrorsThreshold int     `yaml:"frameErrorsThreshold"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
}

// MetricsConfig represents the Prometheus listener, disabled when Listen is empty
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// DefaultConfig returns the bench configuration.
func DefaultConfig() *Config {
	sc := sweep.DefaultConfig()
	rc := sim.DefaultConfig()

	return &Config{
		Settings: Settings{LogLevel: "info"},
		Sweep: SweepConfig{
			SampleRate:      sc.SampleRate,
			StartFreq:       sc.StartFreq,
			EndFreq:         sc.EndFreq,
			Step:            sc.Step,
			InputSignalFreq: sc.InputSignalFreq,
			FFTSize:         sc.FFTSize,
			WindowWidth:     sc.WindowWidth,
			SettleTime:      Duration(sc.SettleTime),
			SettleFrames:    sc.SettleFrames,
			FrameTimeout:    Duration(sc.FrameTimeout),
			TuneRetries:     sc.TuneRetries,
			ClampOffsets:    true,
		},
		Receiver: ReceiverConfig{
			Name:                 "usrp-n200",
			Gain:                 5,
			Antenna:              sdr.AntennaRX2,
			FrameRate:            rc.FrameRate,
			AvgAlpha:             rc.AvgAlpha,
			RefScale:             rc.RefScale,
			SignalPower:          rc.SignalPower,
			NoiseFloor:           rc.NoiseFloor,
			FilterOrder:          rc.FilterOrder,
			Seed:                 rc.Seed,
			FrameErrorsThreshold: sdr.FrameErrorsThreshold,
		},
		Storage: StorageConfig{
			Enabled:       true,
			DataDirectory: defaultDataDirectory,
			MaxBatchSize:  storage.MaxBatchSize,
		},
	}
}

// LoadConfig reads the YAML configuration file at path on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	c := DefaultConfig()
	if err = yaml.Unmarshal(p, c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err = c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Settings.Level(); err != nil {
		errs = append(errs, err)
	}

	sc := c.Sweep.Config()
	if err := sc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sweep: %w", err))
	}
	rc := c.Receiver.SimConfig(c.Sweep.FFTSize, c.Sweep.InputSignalFreq)
	if err := rc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("receiver: %w", err))
	}
	if c.Receiver.FrameErrorsThreshold < 1 {
		errs = append(errs, fmt.Errorf("receiver: frameErrorsThreshold must be at least 1: %d", c.Receiver.FrameErrorsThreshold))
	}
	if c.Storage.Enabled && c.Storage.MaxBatchSize < 1 {
		errs = append(errs, fmt.Errorf("storage: maxBatchSize must be at least 1: %d", c.Storage.MaxBatchSize))
	}

	if len(errs) > 0 {
		return sweep.NewConfigError(errors.Join(errs...).Error())
	}
	return nil
}

// Level parses the log level.
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("settings: invalid logLevel %q", s.LogLevel)
	}
	return level, nil
}

// Config returns the sweep controller configuration.
func (c *SweepConfig) Config() sweep.Config {
	return sweep.Config{
		SampleRate:      c.SampleRate,
		StartFreq:       c.StartFreq,
		EndFreq:         c.EndFreq,
		Step:            c.Step,
		InputSignalFreq: c.InputSignalFreq,
		FFTSize:         c.FFTSize,
		WindowWidth:     c.WindowWidth,
		SettleTime:      time.Duration(c.SettleTime),
		SettleFrames:    c.SettleFrames,
		FrameTimeout:    time.Duration(c.FrameTimeout),
		TuneRetries:     c.TuneRetries,
		NoClamp:         !c.ClampOffsets,
	}
}

// SimConfig returns the simulated receiver configuration.
func (c *ReceiverConfig) SimConfig(fftSize int, signalFreq float64) sim.Config {
	rc := sim.DefaultConfig()
	rc.FFTSize = fftSize
	rc.FrameRate = c.FrameRate
	rc.AvgAlpha = c.AvgAlpha
	rc.RefScale = c.RefScale
	rc.SignalFreq = signalFreq
	rc.SignalPower = c.SignalPower
	rc.NoiseFloor = c.NoiseFloor
	rc.FilterOrder = c.FilterOrder
	rc.Seed = c.Seed
	return rc
}

// Settings returns the front-end settings.
func (c *ReceiverConfig) Settings() sdr.Settings {
	return sdr.Settings{
		Gain:      c.Gain,
		Antenna:   c.Antenna,
		Bandwidth: c.Bandwidth,
	}
}

// Duration is a time.Duration read from YAML as a string such as "5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
