package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roman-kulish/filter-sweep/internal/sweep"
)

const recordColumns = 8

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

// toConfigData encodes an optional configuration as it is stored in the sessions table.
func toConfigData(config any) (sql.NullString, error) {
	var data sql.NullString
	if config == nil {
		return data, nil
	}

	switch c := config.(type) {
	case string:
		data.String = c

	case []byte:
		data.String = string(c)

	default:
		p, err := json.Marshal(config)
		if err != nil {
			return data, fmt.Errorf("marshaling config: %w", err)
		}
		data.String = string(p)
	}

	data.Valid = true
	return data, nil
}

func toRecordArgs(sessionID int64, rec *sweep.Record) []any {
	return []any{
		sessionID,
		rec.Step,
		rec.Timestamp.UTC(),
		rec.CenterFreq,
		rec.Amplitude,
		rec.Offset,
		rec.Max,
		rec.Min,
	}
}

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var sess Session
	var config sql.NullString
	if err := row.Scan(&sess.ID, &sess.RunID, &sess.StartTime, &config); err != nil {
		return nil, err
	}
	if config.Valid {
		sess.Config = &config.String
	}
	return &sess, nil
}
