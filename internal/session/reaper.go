package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ErrFileHeld marks a segment file that stayed locked through every delete
// attempt. The file is left on disk and not retried later.
var ErrFileHeld = errors.New("segment file still held after delete retries")

// Reaper deletes processed segment files, tolerating a short window where
// the recorder still holds the file open.
type Reaper struct {
	dir      string
	attempts int
	wait     time.Duration
	log      *slog.Logger

	// injection points for tests
	sleep      func(time.Duration)
	removeFile func(string) error
}

func NewReaper(dir string, attempts int, wait time.Duration, log *slog.Logger) *Reaper {
	return &Reaper{
		dir:        dir,
		attempts:   attempts,
		wait:       wait,
		log:        log.With(slog.String("component", "segment-reaper")),
		sleep:      time.Sleep,
		removeFile: os.Remove,
	}
}

// Remove deletes the named segment file with bounded retries. A missing
// file counts as success; exhausting retries is reported as ErrFileHeld.
func (r *Reaper) Remove(ctx context.Context, sessionID, fileName string) error {
	path := filepath.Join(r.dir, fileName)

	for attempt := 1; attempt <= r.attempts; attempt++ {
		err := r.removeFile(path)
		if err == nil {
			r.log.Debug("segment deleted",
				slog.String("session", sessionID),
				slog.String("segment", fileName))
			return nil
		}
		if os.IsNotExist(err) {
			r.log.Debug("segment already gone", slog.String("segment", fileName))
			return nil
		}

		r.log.Warn("segment delete failed, retrying",
			slog.String("segment", fileName),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", r.attempts),
			slog.String("error", err.Error()))

		if attempt < r.attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			r.sleep(r.wait)
		}
	}

	r.log.Error("giving up on segment delete, file left in place",
		slog.String("session", sessionID),
		slog.String("segment", fileName))
	return fmt.Errorf("%w: %s", ErrFileHeld, fileName)
}
