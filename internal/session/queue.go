package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/soundbite-labs/soundbite-core/internal/journal"
)

// Processor runs the recognition pipeline on one segment file.
type Processor interface {
	Process(ctx context.Context, sessionID, path string) error
}

// Cleaner removes a processed segment file from the temp directory.
type Cleaner interface {
	Remove(ctx context.Context, sessionID, fileName string) error
}

// Queue is a per-session FIFO of pending segment filenames. A filename is
// enqueued at most once per queue incarnation; dequeue always forwards the
// file to cleanup, whether processing succeeded or not, so a poisoned
// segment cannot jam the queue.
type Queue struct {
	sessionID string
	dir       string
	proc      Processor
	cleaner   Cleaner
	journal   *journal.Store
	log       *slog.Logger

	mu      sync.Mutex
	pending []string
	seen    map[string]struct{}
}

// NewQueue builds a queue for one session, pre-populated with segment files
// already sitting in dir for this session, oldest first (the zero-padded
// sequence naming makes lexicographic order chronological).
func NewQueue(sessionID, dir, ext string, proc Processor, cleaner Cleaner, jnl *journal.Store, log *slog.Logger) *Queue {
	q := &Queue{
		sessionID: sessionID,
		dir:       dir,
		proc:      proc,
		cleaner:   cleaner,
		journal:   jnl,
		log:       log.With(slog.String("component", "segment-queue"), slog.String("session", sessionID)),
		seen:      make(map[string]struct{}),
	}
	q.loadExisting(ext)
	return q
}

func (q *Queue) loadExisting(ext string) {
	matches, err := filepath.Glob(filepath.Join(q.dir, q.sessionID+"_*"+ext))
	if err != nil {
		q.log.Warn("failed to scan temp dir", slog.String("error", err.Error()))
		return
	}
	sort.Strings(matches)
	for _, m := range matches {
		q.Enqueue(filepath.Base(m))
	}
	if len(matches) > 0 {
		q.log.Info("loaded pending segments", slog.Int("count", len(matches)))
	}
}

// Enqueue appends a filename to the tail. Returns false when the filename
// was already enqueued during this queue's lifetime.
func (q *Queue) Enqueue(name string) bool {
	q.mu.Lock()
	if _, dup := q.seen[name]; dup {
		q.mu.Unlock()
		q.log.Debug("segment already enqueued", slog.String("segment", name))
		return false
	}
	q.seen[name] = struct{}{}
	q.pending = append(q.pending, name)
	q.mu.Unlock()

	if err := q.journal.RecordSegment(context.Background(), q.sessionID, name, journal.EventQueued, ""); err != nil {
		q.log.Warn("failed to journal enqueue", slog.String("error", err.Error()))
	}
	return true
}

// Dequeue pops the head filename and runs it through the pipeline. An empty
// queue is a logged no-op. Processing failures are logged and swallowed;
// the file goes to cleanup either way.
func (q *Queue) Dequeue(ctx context.Context) {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		q.log.Debug("queue is empty")
		return
	}
	name := q.pending[0]
	q.pending = q.pending[1:]
	q.mu.Unlock()

	if err := q.proc.Process(ctx, q.sessionID, filepath.Join(q.dir, name)); err != nil {
		q.log.Error("segment processing failed",
			slog.String("segment", name),
			slog.String("error", err.Error()))
		q.record(name, journal.EventFailed, err.Error())
	} else {
		q.record(name, journal.EventProcessed, "")
	}
	q.cleanup(ctx, name)
}

// Clear drains all remaining entries, issuing cleanup for each without
// processing them. Used on session teardown.
func (q *Queue) Clear(ctx context.Context) {
	q.mu.Lock()
	remaining := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, name := range remaining {
		q.cleanup(ctx, name)
	}
	if len(remaining) > 0 {
		q.log.Info("queue cleared", slog.Int("dropped", len(remaining)))
	}
}

// Pending returns a snapshot of the queued filenames in order.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.pending...)
}

func (q *Queue) cleanup(ctx context.Context, name string) {
	if err := q.cleaner.Remove(ctx, q.sessionID, name); err != nil {
		q.record(name, journal.EventOrphaned, err.Error())
		return
	}
	q.record(name, journal.EventDeleted, "")
}

func (q *Queue) record(name, event, detail string) {
	if err := q.journal.RecordSegment(context.Background(), q.sessionID, name, event, detail); err != nil {
		q.log.Warn("failed to journal segment event",
			slog.String("event", event),
			slog.String("error", err.Error()))
	}
}
