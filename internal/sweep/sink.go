package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
)

// Sink receives records in step order as soon as they are measured.
type Sink interface {
	Emit(rec Record) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(rec Record) error

func (f SinkFunc) Emit(rec Record) error {
	return f(rec)
}

// MultiSink emits every record to each sink in order and stops at the first error.
type MultiSink []Sink

func (m MultiSink) Emit(rec Record) error {
	for _, s := range m {
		if err := s.Emit(rec); err != nil {
			return err
		}
	}
	return nil
}

var csvHeader = []string{"centre_freq", "amplitude"}

// CSVWriter writes one "centre_freq,amplitude" line per record and flushes it
// immediately, so a partial sweep is still usable after an abort.
type CSVWriter struct {
	mu sync.Mutex
	w  *csv.Writer
}

// NewCSVWriter writes the header line and returns the writer.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	c := CSVWriter{w: csv.NewWriter(w)}
	if err := c.write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	return &c, nil
}

func (c *CSVWriter) Emit(rec Record) error {
	return c.write([]string{
		strconv.FormatFloat(rec.CenterFreq, 'f', -1, 64),
		strconv.FormatFloat(rec.Amplitude, 'f', -1, 64),
	})
}

func (c *CSVWriter) write(record []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.w.Write(record); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

type discardSink struct{}

func (discardSink) Emit(Record) error { return nil }
