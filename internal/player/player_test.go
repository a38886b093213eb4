package player

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func newPlayer() *Player {
	return New(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestPositionAdvancesWhilePlaying(t *testing.T) {
	p := newPlayer()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.clock = func() time.Time { return now }

	p.Play("s1", "/media/debate.mp4", 10)
	now = now.Add(3 * time.Second)

	got, ok := p.Position("s1")
	if !ok || got != 13 {
		t.Fatalf("expected position 13, got %f (known=%v)", got, ok)
	}
}

func TestPauseFreezesPosition(t *testing.T) {
	p := newPlayer()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.clock = func() time.Time { return now }

	p.Play("s1", "/media/debate.mp4", 0)
	now = now.Add(5 * time.Second)
	p.Pause("s1")
	now = now.Add(30 * time.Second)

	got, ok := p.Position("s1")
	if !ok || got != 5 {
		t.Fatalf("expected frozen position 5, got %f", got)
	}
}

func TestPauseUnknownSessionIsNoop(t *testing.T) {
	p := newPlayer()
	p.Pause("ghost")
	if _, ok := p.Position("ghost"); ok {
		t.Fatal("expected ghost session to stay unknown")
	}
}
