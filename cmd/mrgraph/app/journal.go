package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/mrgraph/internal/storage"
)

const journalTimeout = 5 * time.Second

// journal records a run in the session store. The zero value records nothing.
type journal struct {
	store     storage.Store
	sessionID int64
	logger    *slog.Logger
}

func openJournal(ctx context.Context, config *Config, logger *slog.Logger) (*journal, error) {
	if config.Journal == "" {
		return &journal{}, nil
	}

	store := storage.NewSqliteStore(config.Journal)

	sessionID, err := store.CreateSession(ctx, string(config.Mode), config)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating session: %w", err)
	}

	logger.Info("session started", slog.Int64("session", sessionID), slog.String("journal", config.Journal))
	return &journal{store: store, sessionID: sessionID, logger: logger}, nil
}

// close ends the session with the number of frames consumed.
func (j *journal) close(frames uint64) error {
	if j.store == nil {
		return nil
	}

	// the run context is usually cancelled by now
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	err := j.store.EndSession(ctx, j.sessionID, frames)
	if err != nil {
		return errors.Join(fmt.Errorf("ending session: %w", err), j.store.Close())
	}

	session, err := j.store.Session(ctx, j.sessionID)
	if err != nil {
		return errors.Join(fmt.Errorf("reading session: %w", err), j.store.Close())
	}

	j.logger.Info("session ended",
		slog.Int64("session", session.ID),
		slog.Uint64("frames", session.Frames),
		slog.Duration("duration", sessionDuration(session)))

	return j.store.Close()
}

// ListSessions writes the sessions recorded in the configured journal to w.
func ListSessions(ctx context.Context, config *Config, w io.Writer) (err error) {
	store := storage.NewSqliteStore(config.Journal)
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODE\tSTARTED\tDURATION\tFRAMES")

	for _, s := range sessions {
		duration := "running"
		if s.Finished() {
			duration = sessionDuration(s).String()
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.Mode,
			humanize.Time(s.StartTime),
			duration,
			humanize.Comma(int64(s.Frames)))
	}

	return tw.Flush()
}

func sessionDuration(s *storage.Session) time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime).Round(time.Millisecond)
}
