package speech

import (
	"context"

	"github.com/soundbite-labs/soundbite-core/internal/audio"
)

// Word is one transcribed token. Timestamps are seconds from segment start;
// alignment refines them to word-level precision.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is one coarse transcription unit with nested words. Words carry
// no speaker information until diarization turns are merged in.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words"`
}

// Turn is one diarized interval attributed to an anonymous speaker tag.
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Embedding is a voice embedding with an explicit shape, so callers can
// reject anything that is not a flat vector instead of silently reducing it.
type Embedding struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// Flat reports whether the embedding is a one-dimensional vector.
func (e Embedding) Flat() bool {
	return len(e.Shape) == 1
}

// Transcriber produces time-stamped segments with nested words.
type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip) ([]Segment, error)
}

// Aligner refines per-word timestamps against the original audio file.
type Aligner interface {
	Align(ctx context.Context, segments []Segment, audioPath string) ([]Segment, error)
}

// Diarizer partitions a clip into anonymous speaker turns.
type Diarizer interface {
	Diarize(ctx context.Context, clip audio.Clip) ([]Turn, error)
}

// Embedder extracts one voice embedding over [start, end] of an audio file.
type Embedder interface {
	Embed(ctx context.Context, audioPath string, start, end float64) (Embedding, error)
}

// Capabilities bundles the four recognition collaborators.
type Capabilities struct {
	Transcriber Transcriber
	Aligner     Aligner
	Diarizer    Diarizer
	Embedder    Embedder
}
