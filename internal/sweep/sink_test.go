package sweep

import (
	"bytes"
	"errors"
	"testing"
)

func TestCSVWriter(t *testing.T) {
	var out bytes.Buffer

	w, err := NewCSVWriter(&out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := []Record{
		{CenterFreq: 1115e6, Amplitude: 12.5},
		{CenterFreq: 1115.05e6, Amplitude: 0.125},
		{CenterFreq: 1115.1e6, Amplitude: -3},
	}
	for _, rec := range records {
		if err := w.Emit(rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	want := "centre_freq,amplitude\n" +
		"1115000000,12.5\n" +
		"1115050000,0.125\n" +
		"1115100000,-3\n"
	if got := out.String(); got != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", got, want)
	}
}

func TestCSVWriter_HeaderOnly(t *testing.T) {
	var out bytes.Buffer

	if _, err := NewCSVWriter(&out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "centre_freq,amplitude\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestMultiSink(t *testing.T) {
	errFirst := errors.New("first")

	var order []string
	ok := SinkFunc(func(Record) error {
		order = append(order, "ok")
		return nil
	})
	failing := SinkFunc(func(Record) error {
		order = append(order, "failing")
		return errFirst
	})
	never := SinkFunc(func(Record) error {
		order = append(order, "never")
		return nil
	})

	err := MultiSink{ok, failing, never}.Emit(Record{})
	if !errors.Is(err, errFirst) {
		t.Fatalf("expected %v, got %v", errFirst, err)
	}
	if len(order) != 2 || order[0] != "ok" || order[1] != "failing" {
		t.Fatalf("unexpected emit order: %v", order)
	}
}
