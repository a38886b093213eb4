package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soundbite-labs/soundbite-core/internal/config"
	"github.com/soundbite-labs/soundbite-core/internal/journal"
)

// Registry owns the session → watcher map. At most one live watcher exists
// per session; replacing one stops and joins the predecessor first. The
// single mutex covers the whole install/replace critical section, including
// the blocking stop, so concurrent plays for one session cannot race.
type Registry struct {
	cfg     config.IngestConfig
	proc    Processor
	reaper  *Reaper
	journal *journal.Store
	log     *slog.Logger
	ctx     context.Context

	mu       sync.Mutex
	watchers map[string]*Watcher
}

// NewRegistry builds the registry. Watchers created through Play inherit
// parent as their lifetime context.
func NewRegistry(parent context.Context, cfg config.IngestConfig, proc Processor, jnl *journal.Store, log *slog.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		proc:     proc,
		reaper:   NewReaper(cfg.TempDir, cfg.DeleteAttempts, time.Duration(cfg.DeleteWaitMS)*time.Millisecond, log),
		journal:  jnl,
		log:      log.With(slog.String("component", "watch-registry")),
		ctx:      parent,
		watchers: make(map[string]*Watcher),
	}
}

// Play installs a fresh queue and watcher for the session, tearing down any
// previous watcher first. Failure to install leaves no watcher registered
// for the session.
func (r *Registry) Play(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.watchers[sessionID]; ok {
		r.log.Info("replacing session watcher", slog.String("session", sessionID))
		prev.Stop()
		delete(r.watchers, sessionID)
	}

	if err := r.journal.RecordSession(ctx, sessionID); err != nil {
		r.log.Warn("failed to journal session", slog.String("error", err.Error()))
	}

	queue := NewQueue(sessionID, r.cfg.TempDir, r.cfg.SegmentExtension, r.proc, r.reaper, r.journal, r.log)
	w, err := newWatcher(r.ctx, sessionID, r.cfg.TempDir, r.cfg.SegmentExtension, r.cfg.QueueDepth, queue, r.log)
	if err != nil {
		return fmt.Errorf("install watcher for session %s: %w", sessionID, err)
	}
	r.watchers[sessionID] = w
	return nil
}

// Active reports whether a watcher is registered for the session.
func (r *Registry) Active(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.watchers[sessionID]
	return ok
}

// Sessions returns the ids with a live watcher.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.watchers))
	for id := range r.watchers {
		ids = append(ids, id)
	}
	return ids
}

// Queue returns the live queue for a session, or nil.
func (r *Registry) Queue(sessionID string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.watchers[sessionID]; ok {
		return w.Queue()
	}
	return nil
}

// Close stops every watcher and blocks until all have shut down.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.watchers {
		w.Stop()
		delete(r.watchers, id)
	}
}
