package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func toSettingsData(settings any) (data sql.NullString, err error) {
	switch v := settings.(type) {
	case nil:
		return

	case string:
		data.Valid = true
		data.String = v

	case []byte:
		data.Valid = true
		data.String = string(v)

	default:
		var p []byte
		if p, err = json.Marshal(v); err != nil {
			err = fmt.Errorf("marshaling settings: %w", err)
			return
		}

		data.Valid = true
		data.String = string(p)
	}

	return
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		sess     Session
		endTime  sql.NullTime
		frames   int64
		settings sql.NullString
	)

	if err := row.Scan(&sess.ID, &sess.Mode, &sess.StartTime, &endTime, &frames, &settings); err != nil {
		return nil, err
	}

	if endTime.Valid {
		sess.EndTime = &endTime.Time
	}
	if settings.Valid {
		sess.Settings = &settings.String
	}
	sess.Frames = uint64(frames)

	return &sess, nil
}
