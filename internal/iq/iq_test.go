package iq

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func encodeValues(values ...float64) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name   string
		input  []byte
		expect Samples
	}{
		{"empty", nil, nil},
		{"single pair", encodeValues(1, -1), Samples{complex(1, -1)}},
		{"pairs", encodeValues(0.5, 0.25, -2, 3), Samples{complex(0.5, 0.25), complex(-2, 3)}},
		{"odd trailing value", encodeValues(1, 2, 3), Samples{complex(1, 2)}},
		{"only one value", encodeValues(7), nil},
		{"partial value", append(encodeValues(1, 2), 0x01, 0x02, 0x03), Samples{complex(1, 2)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			samples, err := Decode(bytes.NewReader(tc.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(samples) != len(tc.expect) {
				t.Fatalf("expected %d samples, got %d", len(tc.expect), len(samples))
			}
			for k := range samples {
				if samples[k] != tc.expect[k] {
					t.Errorf("sample %d: expected %v, got %v", k, tc.expect[k], samples[k])
				}
			}
		})
	}
}

func TestComponents(t *testing.T) {
	samples := Samples{complex(1, 2), complex(3, 4), complex(math.Inf(1), -0.5)}

	i, q := samples.I(), samples.Q()
	expectI := []float64{1, 3, math.Inf(1)}
	expectQ := []float64{2, 4, -0.5}

	for k := range samples {
		if i[k] != expectI[k] || q[k] != expectQ[k] {
			t.Errorf("sample %d: expected (%g, %g), got (%g, %g)", k, expectI[k], expectQ[k], i[k], q[k])
		}
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.dat")

	expect := Samples{complex(0.1, -0.1), complex(0.2, -0.2), complex(0.3, -0.3)}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err = Encode(f, expect); err != nil {
		t.Fatal(err)
	}
	if err = f.Close(); err != nil {
		t.Fatal(err)
	}

	samples, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != len(expect) {
		t.Fatalf("expected %d samples, got %d", len(expect), len(samples))
	}
	for k := range expect {
		if samples[k] != expect[k] {
			t.Errorf("sample %d: expected %v, got %v", k, expect[k], samples[k])
		}
	}
}

func TestReadFile_NotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.dat")

	_, err := ReadFile(path)

	var notFound *FileNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected FileNotFoundError, got %v", err)
	}
	if notFound.Path != path {
		t.Errorf("expected path %s, got %s", path, notFound.Path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped os.ErrNotExist")
	}
}
