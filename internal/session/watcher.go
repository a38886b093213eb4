package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the shared temp directory for one session's segment
// files. Create events are handed to a bounded single-consumer channel: the
// notification goroutine stays free to observe the filesystem while the
// consumer serializes enqueue-then-drain, so at most one segment is in the
// pipeline per session. A full channel blocks event delivery; that is the
// backpressure signal.
type Watcher struct {
	sessionID string
	ext       string
	prefix    string
	queue     *Queue
	fsw       *fsnotify.Watcher
	work      chan string
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	log       *slog.Logger
}

func newWatcher(parent context.Context, sessionID, dir, ext string, depth int, queue *Queue, log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(parent)
	w := &Watcher{
		sessionID: sessionID,
		ext:       ext,
		prefix:    sessionID + "_",
		queue:     queue,
		fsw:       fsw,
		work:      make(chan string, depth),
		ctx:       ctx,
		cancel:    cancel,
		log:       log.With(slog.String("component", "session-watcher"), slog.String("session", sessionID)),
	}

	w.wg.Add(2)
	go w.watchLoop()
	go w.consumeLoop()

	w.log.Info("watching for segments", slog.String("dir", dir))
	return w, nil
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()
	defer close(w.work)

	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasPrefix(name, w.prefix) || !strings.HasSuffix(name, w.ext) {
				continue
			}
			select {
			case w.work <- name:
			case <-w.ctx.Done():
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("fs watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) consumeLoop() {
	defer w.wg.Done()

	// Work off anything the preload scan found before new events arrive.
	for range w.queue.Pending() {
		if w.ctx.Err() != nil {
			return
		}
		w.queue.Dequeue(w.ctx)
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case name, ok := <-w.work:
			if !ok {
				return
			}
			w.queue.Enqueue(name)
			w.queue.Dequeue(w.ctx)
		}
	}
}

// Stop shuts the watcher down and blocks until both goroutines have
// returned. A segment mid-pipeline finishes first; anything still queued is
// left for the next incarnation's preload scan.
func (w *Watcher) Stop() {
	w.cancel()
	if err := w.fsw.Close(); err != nil {
		w.log.Warn("failed to close fs watcher", slog.String("error", err.Error()))
	}
	w.wg.Wait()
	w.log.Info("watcher stopped")
}

// Queue exposes the session's segment queue.
func (w *Watcher) Queue() *Queue {
	return w.queue
}
