package storage

import (
	"time"

	"github.com/google/uuid"
)

// Session is a single sweep run.
type Session struct {
	ID        int64
	RunID     uuid.UUID
	StartTime time.Time
	Config    *string // JSON encoded sweep configuration
}
