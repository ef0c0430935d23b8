// Package iq decodes raw complex baseband capture files.
//
// A capture is a flat sequence of host-endian (little-endian) float64 values
// with I and Q interleaved: I0 Q0 I1 Q1 ...
package iq

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const sampleSize = 8

// Samples is a sequence of complex baseband samples, I[k] + j·Q[k].
type Samples []complex128

// Decode reads interleaved float64 values from r and pairs them into samples.
// A trailing unpaired value, or a trailing partial value, is ignored.
func Decode(r io.Reader) (Samples, error) {
	br := bufio.NewReader(r)

	var samples Samples
	var pair [2 * sampleSize]byte
	for {
		_, err := io.ReadFull(br, pair[:])
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return samples, nil
		}
		if err != nil {
			return samples, fmt.Errorf("reading samples: %w", err)
		}

		i := math.Float64frombits(binary.LittleEndian.Uint64(pair[:sampleSize]))
		q := math.Float64frombits(binary.LittleEndian.Uint64(pair[sampleSize:]))
		samples = append(samples, complex(i, q))
	}
}

// ReadFile decodes the capture at path. A missing file is reported as
// *FileNotFoundError.
func ReadFile(path string) (_ Samples, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &FileNotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("opening sample file: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	return Decode(f)
}

// Encode writes the samples to w in the capture layout.
func Encode(w io.Writer, samples Samples) error {
	bw := bufio.NewWriter(w)

	var pair [2 * sampleSize]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint64(pair[:sampleSize], math.Float64bits(real(s)))
		binary.LittleEndian.PutUint64(pair[sampleSize:], math.Float64bits(imag(s)))
		if _, err := bw.Write(pair[:]); err != nil {
			return fmt.Errorf("writing samples: %w", err)
		}
	}
	return bw.Flush()
}

// I returns the in-phase components.
func (s Samples) I() []float64 {
	out := make([]float64, len(s))
	for k, v := range s {
		out[k] = real(v)
	}
	return out
}

// Q returns the quadrature components.
func (s Samples) Q() []float64 {
	out := make([]float64, len(s))
	for k, v := range s {
		out[k] = imag(v)
	}
	return out
}
