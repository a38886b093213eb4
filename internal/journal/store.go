package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/soundbite-labs/soundbite-core/internal/config"
	_ "modernc.org/sqlite"
)

// Segment lifecycle event types.
const (
	EventQueued    = "queued"
	EventProcessed = "processed"
	EventFailed    = "failed"
	EventDeleted   = "deleted"
	EventOrphaned  = "orphaned" // deletion retries exhausted, file left on disk
)

// SegmentEvent is one recorded lifecycle transition for a segment file.
// The journal tracks what happened to each file, never transcript text.
type SegmentEvent struct {
	ID        int64
	SessionID string
	FileName  string
	Type      string
	Detail    string
	CreatedAt time.Time
}

// Store is a SQLite-backed audit journal for segment lifecycle events.
// In ephemeral retention mode every call is a no-op.
type Store struct {
	db    *sql.DB
	cfg   config.JournalConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the journal according to config.
func Open(ctx context.Context, cfg config.JournalConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("journal vacuum failed", slog.String("error", err.Error()))
		}
	}
	if err := s.Prune(ctx); err != nil {
		log.Warn("journal prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS segment_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    file_name TEXT NOT NULL,
    event_type TEXT NOT NULL,
    detail TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_segment_events_session ON segment_events(session_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) disabled() bool {
	return s == nil || s.db == nil || s.cfg.RetentionMode == "ephemeral"
}

// RecordSession ensures a session row exists.
func (s *Store) RecordSession(ctx context.Context, sessionID string) error {
	if s.disabled() {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, created_at) VALUES(?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		sessionID, s.clock().UTC())
	return err
}

// RecordSegment appends one lifecycle event for a segment file.
func (s *Store) RecordSegment(ctx context.Context, sessionID, fileName, eventType, detail string) error {
	if s.disabled() {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO segment_events(session_id, file_name, event_type, detail, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		sessionID, fileName, eventType, detail, s.clock().UTC())
	return err
}

// ListSegmentEvents retrieves up to limit events for a session, oldest first.
func (s *Store) ListSegmentEvents(ctx context.Context, sessionID string, limit int) ([]SegmentEvent, error) {
	if s.disabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, file_name, event_type, detail, created_at
		 FROM segment_events WHERE session_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []SegmentEvent
	for rows.Next() {
		var e SegmentEvent
		var created string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.FileName, &e.Type, &e.Detail, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune applies the configured retention window.
func (s *Store) Prune(ctx context.Context) error {
	if s.disabled() || s.cfg.RetentionDays <= 0 {
		return nil
	}
	cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM segment_events WHERE created_at < ?`, cutoff); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
