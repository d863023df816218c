package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/ffspoints/internal/point"
)

// isTransient reports whether err is a SQLite BUSY or LOCKED failure,
// the only class of write failure that is worth retrying.
func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// withRetry runs f up to maxWriteAttempts times while it fails transiently.
// The delay between attempts starts at retryBackoff and doubles.
//
// Non-transient errors are returned unchanged on first occurrence. When the
// attempts run out, the last transient error is wrapped in a WRITE_EXHAUSTED
// point.Error; the write is never dropped silently.
func (s *Store) withRetry(ctx context.Context, op, pointID string, f func() error) error {
	delay := s.opts.retryBackoff
	var err error
	for attempt := 1; attempt <= s.opts.maxWriteAttempts; attempt++ {
		err = f()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt == s.opts.maxWriteAttempts {
			break
		}

		WriteRetriesTotal.Inc()
		slog.Warn("transient write failure, retrying",
			"op", op,
			"point_id", pointID,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	WritesExhaustedTotal.Inc()
	slog.Error("write exhausted retries",
		"op", op,
		"point_id", pointID,
		"attempts", s.opts.maxWriteAttempts,
		"error", err,
	)
	return point.NewWriteExhausted(op, pointID, s.opts.maxWriteAttempts, err)
}
