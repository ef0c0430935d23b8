package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

const (
	// indexes are built once the session is written, inserts stay cheap while sweeping
	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_records_session_freq ON records (session_id, centre_freq);`

	insertSessionSQL = `
INSERT INTO sessions (
                      run_id,
                      start_time,
                      config)
VALUES (?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    run_id,
    start_time,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    run_id,
    start_time,
    config
FROM sessions
ORDER BY start_time, id`

	insertRecordsSQL = `
INSERT INTO records (
                     session_id,
                     step,
                     timestamp,
                     centre_freq,
                     amplitude,
                     window_offset,
                     max_power,
                     min_power)
VALUES `

	insertRecordPlaceholder = "(?, ?, ?, ?, ?, ?, ?, ?)"

	selectRecordsSQL = `
SELECT
    step,
    timestamp,
    centre_freq,
    amplitude,
    window_offset,
    max_power,
    min_power
FROM records
WHERE
    session_id = ?
    AND centre_freq BETWEEN ? AND ?
ORDER BY step`
)
