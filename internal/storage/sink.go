package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/roman-kulish/filter-sweep/internal/sweep"
)

// WithBatchSize sets the number of records collected before they are written
// within a single database transaction.
func WithBatchSize(size int) func(*RecordSink) {
	return func(s *RecordSink) {
		s.batchSize = size
	}
}

// RecordSink collects sweep records and writes them to the store in batches.
// Close must be called to write the last partial batch.
type RecordSink struct {
	store     Store
	sessionID int64
	batchSize int

	mu      sync.Mutex
	pending []sweep.Record
}

var _ sweep.Sink = (*RecordSink)(nil)

// NewRecordSink creates a sink writing to the given session.
func NewRecordSink(store Store, sessionID int64, options ...func(*RecordSink)) *RecordSink {
	s := RecordSink{
		store:     store,
		sessionID: sessionID,
		batchSize: MaxBatchSize,
	}

	for _, option := range options {
		option(&s)
	}

	if s.batchSize < 1 {
		s.batchSize = 1
	}
	s.pending = make([]sweep.Record, 0, s.batchSize)

	return &s
}

func (s *RecordSink) Emit(rec sweep.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, rec)
	if len(s.pending) < s.batchSize {
		return nil
	}
	if err := s.flushLocked(context.Background()); err != nil {
		// the record is reported as not emitted, so it must not be stored later
		if n := len(s.pending); n > 0 && s.pending[n-1].Step == rec.Step {
			s.pending = s.pending[:n-1]
		}
		return err
	}
	return nil
}

// Flush writes pending records.
func (s *RecordSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

// Close writes pending records. It does not close the store.
func (s *RecordSink) Close() error {
	return s.Flush(context.Background())
}

// flushLocked writes pending records one transaction at a time. Records of
// committed transactions are dropped from pending even when a later one fails.
func (s *RecordSink) flushLocked(ctx context.Context) error {
	for len(s.pending) > 0 {
		n := min(len(s.pending), MaxBatchSize)
		if err := s.store.StoreRecords(ctx, s.sessionID, s.pending[:n]); err != nil {
			return fmt.Errorf("storing records: %w", err)
		}
		s.pending = append(s.pending[:0], s.pending[n:]...)
	}
	return nil
}
