package speech

import (
	"context"
	"fmt"

	"github.com/soundbite-labs/soundbite-core/internal/audio"
)

// NewMockCapabilities returns deterministic stand-ins for all four
// collaborators. One segment, one word per half second, a single speaker
// turn spanning the clip, and a unit embedding.
func NewMockCapabilities() Capabilities {
	return Capabilities{
		Transcriber: &mockTranscriber{},
		Aligner:     &mockAligner{},
		Diarizer:    &mockDiarizer{},
		Embedder:    &mockEmbedder{},
	}
}

type mockTranscriber struct{}

func (m *mockTranscriber) Transcribe(_ context.Context, clip audio.Clip) ([]Segment, error) {
	dur := clip.Duration()
	if dur == 0 {
		return nil, nil
	}
	var words []Word
	for t := 0.0; t < dur; t += 0.5 {
		end := t + 0.5
		if end > dur {
			end = dur
		}
		words = append(words, Word{
			Text:  fmt.Sprintf("word%d", len(words)),
			Start: t,
			End:   end,
		})
	}
	seg := Segment{Start: 0, End: dur, Words: words}
	for i, w := range words {
		if i > 0 {
			seg.Text += " "
		}
		seg.Text += w.Text
	}
	return []Segment{seg}, nil
}

type mockAligner struct{}

func (m *mockAligner) Align(_ context.Context, segments []Segment, _ string) ([]Segment, error) {
	return segments, nil
}

type mockDiarizer struct{}

func (m *mockDiarizer) Diarize(_ context.Context, clip audio.Clip) ([]Turn, error) {
	dur := clip.Duration()
	if dur == 0 {
		return nil, nil
	}
	return []Turn{{Start: 0, End: dur, Speaker: "SPEAKER_00"}}, nil
}

type mockEmbedder struct{}

func (m *mockEmbedder) Embed(_ context.Context, _ string, _, _ float64) (Embedding, error) {
	data := make([]float64, 32)
	for i := range data {
		data[i] = 1
	}
	return Embedding{Shape: []int{len(data)}, Data: data}, nil
}
