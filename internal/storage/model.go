package storage

import "time"

// Session is one journaled visualization run.
type Session struct {
	ID        int64
	Mode      string
	StartTime time.Time
	EndTime   *time.Time // nil while the run is in progress
	Frames    uint64
	Settings  *string // JSON
}

// Finished reports whether the session has been ended.
func (s *Session) Finished() bool {
	return s.EndTime != nil
}
