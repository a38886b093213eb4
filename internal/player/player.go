package player

import (
	"log/slog"
	"sync"
	"time"
)

// state tracks one session's playback position. Position advances in wall
// time while playing and freezes on pause.
type state struct {
	mediaPath string
	offset    float64
	playing   bool
	startedAt time.Time
}

// Player keeps per-session playback state for the media being transcribed.
// It does not touch audio output; the recorder component follows this state
// externally.
type Player struct {
	log   *slog.Logger
	clock func() time.Time

	mu       sync.Mutex
	sessions map[string]*state
}

func New(log *slog.Logger) *Player {
	return &Player{
		log:      log.With(slog.String("component", "player")),
		clock:    time.Now,
		sessions: make(map[string]*state),
	}
}

// Play starts or repositions playback for a session.
func (p *Player) Play(sessionID, mediaPath string, offset float64) {
	p.mu.Lock()
	p.sessions[sessionID] = &state{
		mediaPath: mediaPath,
		offset:    offset,
		playing:   true,
		startedAt: p.clock(),
	}
	p.mu.Unlock()

	p.log.Info("playback started",
		slog.String("session", sessionID),
		slog.String("media", mediaPath),
		slog.Float64("offset", offset))
}

// Pause freezes the session's position. Pausing an unknown session is a
// logged no-op.
func (p *Player) Pause(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[sessionID]
	if !ok || !s.playing {
		p.log.Debug("pause with no active playback", slog.String("session", sessionID))
		return
	}
	s.offset += p.clock().Sub(s.startedAt).Seconds()
	s.playing = false
	p.log.Info("playback paused",
		slog.String("session", sessionID),
		slog.Float64("offset", s.offset))
}

// Position returns the current playback offset in seconds and whether the
// session is known.
func (p *Player) Position(sessionID string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[sessionID]
	if !ok {
		return 0, false
	}
	if !s.playing {
		return s.offset, true
	}
	return s.offset + p.clock().Sub(s.startedAt).Seconds(), true
}

// Media returns the media path last played by the session.
func (p *Player) Media(sessionID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return "", false
	}
	return s.mediaPath, true
}
