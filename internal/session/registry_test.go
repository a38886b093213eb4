package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/soundbite-labs/soundbite-core/internal/config"
)

func testIngestConfig(dir string) config.IngestConfig {
	return config.IngestConfig{
		TempDir:          dir,
		SegmentExtension: ".wav",
		QueueDepth:       8,
		DeleteAttempts:   5,
		DeleteWaitMS:     1,
	}
}

type signalingProcessor struct {
	mu   sync.Mutex
	seen []string
	done chan string
}

func newSignalingProcessor() *signalingProcessor {
	return &signalingProcessor{done: make(chan string, 16)}
}

func (p *signalingProcessor) Process(_ context.Context, _ string, path string) error {
	name := filepath.Base(path)
	p.mu.Lock()
	p.seen = append(p.seen, name)
	p.mu.Unlock()
	p.done <- name
	return nil
}

func TestPlayTwiceLeavesOneWatcher(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(context.Background(), testIngestConfig(dir), newSignalingProcessor(), nil, newLogger())
	t.Cleanup(r.Close)

	if err := r.Play(context.Background(), "session1"); err != nil {
		t.Fatalf("first play: %v", err)
	}
	if err := r.Play(context.Background(), "session1"); err != nil {
		t.Fatalf("second play: %v", err)
	}

	if got := r.Sessions(); len(got) != 1 || got[0] != "session1" {
		t.Fatalf("expected exactly one live watcher for session1, got %v", got)
	}
}

func TestWatcherProcessesAndReapsNewSegment(t *testing.T) {
	dir := t.TempDir()
	proc := newSignalingProcessor()
	r := NewRegistry(context.Background(), testIngestConfig(dir), proc, nil, newLogger())
	t.Cleanup(r.Close)

	if err := r.Play(context.Background(), "session1"); err != nil {
		t.Fatalf("play: %v", err)
	}

	path := filepath.Join(dir, "session1_0001.wav")
	if err := os.WriteFile(path, []byte("pcm"), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	select {
	case name := <-proc.done:
		if name != "session1_0001.wav" {
			t.Fatalf("unexpected segment processed: %s", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("segment was never processed")
	}

	// Deletion happens right after processing returns; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected segment file deleted after processing")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPlayDrainsPreexistingSegments(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "session1_0001.wav"), []byte("pcm"), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	proc := newSignalingProcessor()
	r := NewRegistry(context.Background(), testIngestConfig(dir), proc, nil, newLogger())
	t.Cleanup(r.Close)

	if err := r.Play(context.Background(), "session1"); err != nil {
		t.Fatalf("play: %v", err)
	}

	select {
	case name := <-proc.done:
		if name != "session1_0001.wav" {
			t.Fatalf("unexpected segment processed: %s", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pre-existing segment was never processed")
	}
}

func TestWatcherIgnoresOtherSessions(t *testing.T) {
	dir := t.TempDir()
	proc := newSignalingProcessor()
	r := NewRegistry(context.Background(), testIngestConfig(dir), proc, nil, newLogger())
	t.Cleanup(r.Close)

	if err := r.Play(context.Background(), "session1"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "session2_0001.wav"), []byte("pcm"), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	select {
	case name := <-proc.done:
		t.Fatalf("unexpected processing of %s", name)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestCloseStopsAllWatchers(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(context.Background(), testIngestConfig(dir), newSignalingProcessor(), nil, newLogger())

	for _, id := range []string{"a", "b", "c"} {
		if err := r.Play(context.Background(), id); err != nil {
			t.Fatalf("play %s: %v", id, err)
		}
	}
	r.Close()
	if got := r.Sessions(); len(got) != 0 {
		t.Fatalf("expected no live watchers after close, got %v", got)
	}
}
