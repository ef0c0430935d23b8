package app

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/roman-kulish/filter-sweep/internal/chart"
)

const (
	defaultWidth  = 1200
	defaultHeight = 600
)

// IQConfig configures the I/Q component plots.
type IQConfig struct {
	InputFile    string
	OutputPrefix string // Defaults to the input file path without its extension
	Format       chart.ImageFormat
	Width        int
	Height       int
}

func NewIQConfig() *IQConfig {
	return &IQConfig{
		Format: chart.ImagePNG,
		Width:  defaultWidth,
		Height: defaultHeight,
	}
}

// OutputFiles returns the I and Q image paths.
func (c *IQConfig) OutputFiles() (string, string) {
	prefix := c.OutputPrefix
	if prefix == "" {
		prefix = strings.TrimSuffix(c.InputFile, filepath.Ext(c.InputFile))
	}
	return prefix + "_i." + string(c.Format), prefix + "_q." + string(c.Format)
}

// SweepConfig configures the response plot of a stored sweep session.
type SweepConfig struct {
	DBPath     string
	SessionID  int64
	OutputFile string // Defaults to sweep_session_<id>.<format>
	Format     chart.ImageFormat
	MinFreq    *float64
	MaxFreq    *float64
	Width      int
	Height     int
}

func NewSweepConfig() *SweepConfig {
	return &SweepConfig{
		Format: chart.ImagePNG,
		Width:  defaultWidth,
		Height: defaultHeight,
	}
}

func (c *SweepConfig) Validate() error {
	switch {
	case c.DBPath == "":
		return errors.New("db path is required")
	case c.SessionID <= 0:
		return errors.New("session id is required")
	}
	return nil
}
