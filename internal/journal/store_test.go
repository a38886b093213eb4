package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/soundbite-labs/soundbite-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeralIsNoop(t *testing.T) {
	cfg := config.JournalConfig{RetentionMode: "ephemeral"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.RecordSegment(context.Background(), "s1", "s1_0001.wav", EventQueued, ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	events, err := s.ListSegmentEvents(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if events != nil {
		t.Fatalf("expected no events from ephemeral journal, got %v", events)
	}
}

func TestRecordAndList(t *testing.T) {
	cfg := config.JournalConfig{
		Path:          filepath.Join(t.TempDir(), "journal.db"),
		RetentionMode: "session",
	}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	if err := s.RecordSession(ctx, "session-1"); err != nil {
		t.Fatalf("record session: %v", err)
	}
	for _, evt := range []string{EventQueued, EventProcessed, EventDeleted} {
		if err := s.RecordSegment(ctx, "session-1", "session-1_0001.wav", evt, ""); err != nil {
			t.Fatalf("record %s: %v", evt, err)
		}
	}

	events, err := s.ListSegmentEvents(ctx, "session-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != EventQueued || events[2].Type != EventDeleted {
		t.Fatalf("unexpected event order: %v, %v", events[0].Type, events[2].Type)
	}
}

func TestPruneByAge(t *testing.T) {
	cfg := config.JournalConfig{
		Path:          filepath.Join(t.TempDir(), "journal.db"),
		RetentionMode: "persistent",
		RetentionDays: 1,
	}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	s.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.RecordSession(ctx, "old"); err != nil {
		t.Fatalf("record session: %v", err)
	}
	if err := s.RecordSegment(ctx, "old", "old_0001.wav", EventQueued, ""); err != nil {
		t.Fatalf("record segment: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := s.ListSegmentEvents(ctx, "old", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old events pruned, got %d", len(events))
	}
}
