package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soundbite-labs/soundbite-core/internal/bus"
	"github.com/soundbite-labs/soundbite-core/internal/config"
	"github.com/soundbite-labs/soundbite-core/internal/httpapi"
	"github.com/soundbite-labs/soundbite-core/internal/journal"
	"github.com/soundbite-labs/soundbite-core/internal/natsserver"
	"github.com/soundbite-labs/soundbite-core/internal/pipeline"
	"github.com/soundbite-labs/soundbite-core/internal/player"
	"github.com/soundbite-labs/soundbite-core/internal/session"
	"github.com/soundbite-labs/soundbite-core/internal/speaker"
	"github.com/soundbite-labs/soundbite-core/internal/speech"
)

// Runtime assembles the ingestion pipeline, the session watch registry, and
// the HTTP surface, and runs them until the context is cancelled.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	natsServer *natsserver.EmbeddedServer
	busClient  *bus.Client
	journal    *journal.Store
	registry   *session.Registry
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if r.cfg.Bus.Enabled {
		ns, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		r.natsServer = ns

		client, err := bus.Connect(r.cfg.Bus, r.logger)
		if err != nil {
			r.natsServer.Shutdown()
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		r.busClient = client
	}

	jnl, err := journal.Open(ctx, r.cfg.Journal, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	r.journal = jnl

	if err := os.MkdirAll(r.cfg.Ingest.TempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}

	caps, err := r.buildCapabilities()
	if err != nil {
		return err
	}
	identifier, err := speaker.NewIdentifier(r.cfg.Speakers.EmbeddingDir, r.cfg.Speakers.UnknownThreshold, r.logger)
	if err != nil {
		return fmt.Errorf("failed to load speaker banks: %w", err)
	}

	timeout := time.Duration(r.cfg.Speech.SegmentTimeoutMS) * time.Millisecond
	pipe := pipeline.New(caps, identifier, r.busClient, timeout, r.logger)
	r.registry = session.NewRegistry(ctx, r.cfg.Ingest, pipe, r.journal, r.logger)

	api := httpapi.New(r.cfg.Media.Dir, r.registry, player.New(r.logger), r.busClient, r.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	api.Register(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	r.registry.Close()
	r.busClient.Close()
	r.natsServer.Shutdown()
	if err := r.journal.Close(); err != nil {
		r.logger.Error("journal close error", slog.String("error", err.Error()))
	}

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildCapabilities() (speech.Capabilities, error) {
	switch r.cfg.Speech.Mode {
	case "exec":
		caps, err := speech.NewExecCapabilities(r.cfg.Speech)
		if err != nil {
			return speech.Capabilities{}, fmt.Errorf("failed to build exec capabilities: %w", err)
		}
		return caps, nil
	default:
		return speech.NewMockCapabilities(), nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
