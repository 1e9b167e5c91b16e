package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      mode,
                      start_time,
                      settings)
VALUES (?, CURRENT_TIMESTAMP, ?)`

	endSessionSQL = `
UPDATE sessions
SET
    end_time = CURRENT_TIMESTAMP,
    frames = ?
WHERE
    id = ?
    AND end_time IS NULL`

	selectSessionSQL = `
SELECT
    id,
    mode,
    start_time,
    end_time,
    frames,
    settings
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    mode,
    start_time,
    end_time,
    frames,
    settings
FROM sessions
ORDER BY start_time, id`
)

//go:embed schema.sql
var schemaSQL string
