package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/soundbite-labs/soundbite-core/internal/audio"
	"github.com/soundbite-labs/soundbite-core/internal/bus"
	"github.com/soundbite-labs/soundbite-core/internal/protocol"
	"github.com/soundbite-labs/soundbite-core/internal/speaker"
	"github.com/soundbite-labs/soundbite-core/internal/speech"
)

// ProcessingError wraps a failure in any stage of segment recognition.
// Callers catch it, log it, and still hand the segment to cleanup.
type ProcessingError struct {
	Stage string
	Path  string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("process %s: %s stage: %v", filepath.Base(e.Path), e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Pipeline runs one audio segment through transcription, alignment,
// diarization, phrase grouping, and speaker identification, logging one
// line per attributed phrase.
type Pipeline struct {
	caps       speech.Capabilities
	identifier *speaker.Identifier
	bus        *bus.Client
	log        *slog.Logger
	timeout    time.Duration

	segmentsProcessed metric.Int64Counter
	segmentsFailed    metric.Int64Counter
	phrasesAttributed metric.Int64Counter
}

// New builds a pipeline. busClient may be nil; timeout zero disables the
// per-segment deadline.
func New(caps speech.Capabilities, identifier *speaker.Identifier, busClient *bus.Client, timeout time.Duration, log *slog.Logger) *Pipeline {
	p := &Pipeline{
		caps:       caps,
		identifier: identifier,
		bus:        busClient,
		log:        log.With(slog.String("component", "pipeline")),
		timeout:    timeout,
	}
	p.initMetrics()
	return p
}

func (p *Pipeline) initMetrics() {
	meter := otel.Meter("github.com/soundbite-labs/soundbite-core/pipeline")
	var err error
	if p.segmentsProcessed, err = meter.Int64Counter("soundbite.segments.processed",
		metric.WithDescription("Audio segments fully processed")); err != nil {
		p.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
		return
	}
	if p.segmentsFailed, err = meter.Int64Counter("soundbite.segments.failed",
		metric.WithDescription("Audio segments that failed a pipeline stage")); err != nil {
		p.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
		return
	}
	if p.phrasesAttributed, err = meter.Int64Counter("soundbite.phrases.attributed",
		metric.WithDescription("Phrases attributed to a speaker")); err != nil {
		p.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) add(ctx context.Context, counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(ctx, 1)
	}
}

// Process runs the full recognition pipeline on one segment file. A segment
// with no detected speech completes as a no-op.
func (p *Pipeline) Process(ctx context.Context, sessionID, path string) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	err := p.process(ctx, sessionID, path)
	if err != nil {
		p.add(ctx, p.segmentsFailed)
		return err
	}
	p.add(ctx, p.segmentsProcessed)
	return nil
}

func (p *Pipeline) process(ctx context.Context, sessionID, path string) error {
	fail := func(stage string, err error) error {
		return &ProcessingError{Stage: stage, Path: path, Err: err}
	}

	clip, err := audio.Load(path)
	if err != nil {
		return fail("decode", err)
	}
	if clip.Empty() {
		p.log.Debug("segment holds no audio", slog.String("segment", filepath.Base(path)))
		return nil
	}

	segments, err := p.caps.Transcriber.Transcribe(ctx, clip)
	if err != nil {
		return fail("transcribe", err)
	}
	segments, err = p.caps.Aligner.Align(ctx, segments, path)
	if err != nil {
		return fail("align", err)
	}
	turns, err := p.caps.Diarizer.Diarize(ctx, clip)
	if err != nil {
		return fail("diarize", err)
	}

	phrases := groupPhrases(assignSpeakers(segments, turns))
	for _, phrase := range phrases {
		if phrase.Text == "" {
			continue
		}
		emb, err := p.caps.Embedder.Embed(ctx, path, phrase.Start, phrase.End)
		if err != nil {
			return fail("embed", err)
		}
		res, err := p.identifier.Identify(emb)
		if err != nil {
			if errors.Is(err, speaker.ErrInvalidEmbeddingShape) {
				p.log.Warn("phrase left unrecognized",
					slog.String("session", sessionID),
					slog.String("text", phrase.Text),
					slog.String("error", err.Error()))
				continue
			}
			return fail("identify", err)
		}

		p.log.Info(fmt.Sprintf("%s (%.3f): %s", res.Name, res.Score, phrase.Text),
			slog.String("session", sessionID),
			slog.String("segment", filepath.Base(path)))
		p.add(ctx, p.phrasesAttributed)

		attribution := protocol.PhraseAttribution{
			SessionID: sessionID,
			Segment:   filepath.Base(path),
			Speaker:   res.Name,
			Score:     res.Score,
			Text:      phrase.Text,
			Start:     phrase.Start,
			End:       phrase.End,
			Timestamp: time.Now().UTC(),
		}
		if err := p.bus.Publish(protocol.SubjectPhrase(sessionID), attribution); err != nil {
			p.log.Warn("failed to publish phrase attribution", slog.String("error", err.Error()))
		}
	}
	return nil
}
