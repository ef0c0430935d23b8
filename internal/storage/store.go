package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/roman-kulish/filter-sweep/internal/sweep"
)

// Store persists sweep sessions and their records.
type Store interface {
	// CreateSession registers a new sweep run and returns its identifier. The
	// config can be a string, []byte or any JSON-serializable value.
	CreateSession(ctx context.Context, runID uuid.UUID, config any) (sessionID int64, err error)

	// Session retrieves a sweep run by its ID.
	Session(ctx context.Context, id int64) (session *Session, err error)

	// Sessions returns all sweep runs ordered by start time.
	Sessions(ctx context.Context) (sessions []*Session, err error)

	// StoreRecords saves records of a session. Records are written in batches,
	// each batch in a single transaction.
	StoreRecords(ctx context.Context, sessionID int64, records []sweep.Record) error

	// ReadRecords returns a reader over the records of a session in step order.
	ReadRecords(ctx context.Context, sessionID int64, opts ...ReaderOption) (*RecordReader, error)

	// Close releases all database connections. It is safe to call Close multiple times.
	Close() error
}
