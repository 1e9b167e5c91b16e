package storage

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned when a session does not exist or has already been ended.
var ErrSessionNotFound = errors.New("session not found")

// Store journals visualization sessions. It keeps run metadata only, never spectra.
type Store interface {
	// CreateSession records the start of a run and returns its identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - mode: Presentation mode of the run (e.g., "render", "serve", "tui")
	//   - settings: Optional run settings. Can be string, []byte, or JSON-serializable object
	CreateSession(ctx context.Context, mode string, settings any) (sessionID int64, err error)

	// EndSession stamps the end time and the number of frames consumed.
	// Ending a session twice returns ErrSessionNotFound.
	EndSession(ctx context.Context, sessionID int64, frames uint64) error

	// Session retrieves a session by its ID.
	Session(ctx context.Context, id int64) (*Session, error)

	// Sessions returns every session ordered by start time.
	Sessions(ctx context.Context) ([]*Session, error)

	// Close releases all database connections. It is safe to call Close multiple times.
	Close() error
}
