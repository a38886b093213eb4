package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soundbite-labs/soundbite-core/internal/bus"
	"github.com/soundbite-labs/soundbite-core/internal/player"
	"github.com/soundbite-labs/soundbite-core/internal/protocol"
	"github.com/soundbite-labs/soundbite-core/internal/session"
)

const sessionCookie = "soundbite_session"

// API exposes the media catalog and the audio-control surface. Control
// requests are best-effort: failures are logged and the response is
// success-shaped either way.
type API struct {
	mediaDir string
	registry *session.Registry
	player   *player.Player
	bus      *bus.Client
	log      *slog.Logger
}

func New(mediaDir string, registry *session.Registry, pl *player.Player, busClient *bus.Client, log *slog.Logger) *API {
	return &API{
		mediaDir: mediaDir,
		registry: registry,
		player:   pl,
		bus:      busClient,
		log:      log.With(slog.String("component", "httpapi")),
	}
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /videos", a.withSession(a.handleListVideos))
	mux.HandleFunc("GET /videos/{name}", a.withSession(a.handleVideo))
	mux.HandleFunc("POST /audio-control", a.withSession(a.handleAudioControl))
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sessionID string)

// withSession issues a session id cookie on first contact and threads the
// id into the handler.
func (a *API) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sessionID string
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			sessionID = c.Value
		} else {
			sessionID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next(w, r, sessionID)
	}
}

type videoInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (a *API) handleListVideos(w http.ResponseWriter, _ *http.Request, _ string) {
	entries, err := os.ReadDir(a.mediaDir)
	if err != nil {
		a.log.Error("failed to list media dir", slog.String("error", err.Error()))
		http.Error(w, "media directory unavailable", http.StatusInternalServerError)
		return
	}

	videos := make([]videoInfo, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".mp4") && !strings.HasSuffix(name, ".webm") {
			continue
		}
		videos = append(videos, videoInfo{
			Name: name,
			URL:  "/videos/" + url.PathEscape(name),
		})
	}
	writeJSON(w, http.StatusOK, videos)
}

// handleVideo serves media bytes; ServeContent satisfies Range requests for
// the player's seeking.
func (a *API) handleVideo(w http.ResponseWriter, r *http.Request, _ string) {
	name := filepath.Base(r.PathValue("name"))
	path := filepath.Join(a.mediaDir, name)

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "video not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "video not found", http.StatusNotFound)
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

type controlRequest struct {
	Action    string  `json:"action"`
	Time      float64 `json:"time"`
	VideoName string  `json:"videoName"`
}

func (a *API) handleAudioControl(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	mediaPath := filepath.Join(a.mediaDir, filepath.Base(req.VideoName))
	if _, err := os.Stat(mediaPath); err != nil {
		http.Error(w, "audio not found", http.StatusNotFound)
		return
	}

	switch req.Action {
	case "play":
		a.player.Play(sessionID, mediaPath, req.Time)
		if err := a.registry.Play(r.Context(), sessionID); err != nil {
			a.log.Error("failed to install session watcher",
				slog.String("session", sessionID),
				slog.String("error", err.Error()))
		}
	case "pause":
		a.player.Pause(sessionID)
	default:
		a.log.Warn("unknown audio-control action",
			slog.String("session", sessionID),
			slog.String("action", req.Action))
	}

	event := protocol.PlaybackEvent{
		SessionID: sessionID,
		Action:    req.Action,
		Media:     req.VideoName,
		Offset:    req.Time,
		Timestamp: time.Now().UTC(),
	}
	if err := a.bus.Publish(protocol.SubjectPlayback(sessionID), event); err != nil {
		a.log.Warn("failed to publish playback event", slog.String("error", err.Error()))
	}

	// Best-effort by design: the caller only ever sees an acknowledgement.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
