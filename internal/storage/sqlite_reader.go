package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roman-kulish/filter-sweep/internal/sweep"
)

// ReaderOption configures a RecordReader with specific filtering criteria.
type ReaderOption func(*RecordReader)

// WithMinFreq excludes records with a center frequency below f.
func WithMinFreq(f float64) ReaderOption {
	return func(r *RecordReader) {
		r.minFreq = f
	}
}

// WithMaxFreq excludes records with a center frequency above f.
func WithMaxFreq(f float64) ReaderOption {
	return func(r *RecordReader) {
		r.maxFreq = f
	}
}

// WithFreqRange sets both minimum and maximum frequency filters.
func WithFreqRange(minFreq, maxFreq float64) ReaderOption {
	return func(r *RecordReader) {
		r.minFreq = minFreq
		r.maxFreq = maxFreq
	}
}

// RecordReader iterates over the records of a session in step order.
// A reader instance should only be used from a single goroutine.
type RecordReader struct {
	db        *sql.DB
	sessionID int64
	session   *Session

	minFreq float64
	maxFreq float64

	current *sweep.Record
	rows    *sql.Rows
	err     error
}

func newRecordReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*RecordReader, error) {
	r := &RecordReader{
		db:        db,
		sessionID: sessionID,
		minFreq:   0,
		maxFreq:   math.MaxFloat64,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *RecordReader) init(ctx context.Context) error {
	if r.sessionID <= 0 {
		return errors.New("session ID required")
	}
	if r.minFreq > r.maxFreq {
		return fmt.Errorf("min frequency %f is greater than max frequency %f", r.minFreq, r.maxFreq)
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: r.loadSession},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *RecordReader) loadSession(ctx context.Context) (err error) {
	stmt, err := r.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if r.session, err = scanSession(stmt.QueryRowContext(ctx, r.sessionID)); err != nil {
		return fmt.Errorf("querying session: %w", err)
	}
	return
}

func (r *RecordReader) initQuery(ctx context.Context) (err error) {
	r.rows, err = r.db.QueryContext(ctx, selectRecordsSQL, r.sessionID, r.minFreq, r.maxFreq)
	return
}

// Session returns the session the records belong to.
func (r *RecordReader) Session() *Session {
	return r.session
}

// Next advances the reader and returns false when there are no more records
// or an error occurred.
func (r *RecordReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}
	if r.err = ctx.Err(); r.err != nil {
		return false
	}
	if !r.rows.Next() {
		return false
	}

	var rec sweep.Record
	r.err = r.rows.Scan(&rec.Step, &rec.Timestamp, &rec.CenterFreq, &rec.Amplitude, &rec.Offset, &rec.Max, &rec.Min)
	if r.err != nil {
		r.err = fmt.Errorf("scanning record: %w", r.err)
		return false
	}

	r.current = &rec
	return true
}

// Current returns the record read by the last call to Next.
func (r *RecordReader) Current() *sweep.Record {
	return r.current
}

// Error returns the error that stopped the iteration, if any.
func (r *RecordReader) Error() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

func (r *RecordReader) Close() error {
	if r.rows != nil {
		err := r.rows.Close()
		r.current = nil
		r.rows = nil
		return err
	}
	return nil
}

// ReadAll drains the reader and closes it.
func (r *RecordReader) ReadAll(ctx context.Context) (records []sweep.Record, err error) {
	defer closeWithError(r, &err)

	for r.Next(ctx) {
		records = append(records, *r.Current())
	}
	err = r.Error()
	return
}
