package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/soundbite-labs/soundbite-core/internal/config"
	"github.com/soundbite-labs/soundbite-core/internal/player"
	"github.com/soundbite-labs/soundbite-core/internal/session"
)

type noopProcessor struct{}

func (noopProcessor) Process(context.Context, string, string) error { return nil }

func newTestAPI(t *testing.T, mediaDir string) (*API, *session.Registry) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	registry := session.NewRegistry(context.Background(), config.IngestConfig{
		TempDir:          t.TempDir(),
		SegmentExtension: ".wav",
		QueueDepth:       4,
		DeleteAttempts:   1,
		DeleteWaitMS:     1,
	}, noopProcessor{}, nil, log)
	t.Cleanup(registry.Close)
	return New(mediaDir, registry, player.New(log), nil, log), registry
}

func TestListVideos(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"debate.mp4", "clip.webm", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}
	api, _ := newTestAPI(t, dir)
	mux := http.NewServeMux()
	api.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var videos []videoInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &videos); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %v", videos)
	}
}

func TestVideoRangeRequest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	api, _ := newTestAPI(t, dir)
	mux := http.NewServeMux()
	api.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/videos/clip.mp4", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "2345" {
		t.Fatalf("expected partial body 2345, got %q", got)
	}
}

func TestVideoNotFound(t *testing.T) {
	api, _ := newTestAPI(t, t.TempDir())
	mux := http.NewServeMux()
	api.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/missing.mp4", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAudioControlPlayInstallsWatcher(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "debate.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	api, registry := newTestAPI(t, dir)
	mux := http.NewServeMux()
	api.Register(mux)

	body, _ := json.Marshal(controlRequest{Action: "play", Time: 12.5, VideoName: "debate.mp4"})
	req := httptest.NewRequest(http.MethodPost, "/audio-control", bytes.NewReader(body))
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "session-abc"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !registry.Active("session-abc") {
		t.Fatal("expected watcher installed for session-abc")
	}
}

func TestAudioControlMissingMediaIs404(t *testing.T) {
	api, _ := newTestAPI(t, t.TempDir())
	mux := http.NewServeMux()
	api.Register(mux)

	body, _ := json.Marshal(controlRequest{Action: "play", VideoName: "nope.mp4"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/audio-control", bytes.NewReader(body)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSessionCookieIssued(t *testing.T) {
	api, _ := newTestAPI(t, t.TempDir())
	mux := http.NewServeMux()
	api.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos", nil))

	cookies := rec.Result().Cookies()
	var found bool
	for _, c := range cookies {
		if c.Name == sessionCookie && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected session cookie to be issued")
	}
}
