package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip holds decoded 16-bit PCM samples for one audio segment.
type Clip struct {
	SampleRate int
	Channels   int
	Samples    []int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// Empty reports whether the clip carries no samples.
func (c Clip) Empty() bool {
	return len(c.Samples) == 0
}

// Load decodes a WAV file into a Clip.
func Load(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Clip{}, fmt.Errorf("not a valid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil {
		return Clip{}, fmt.Errorf("wav file has no format chunk: %s", path)
	}
	return Clip{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Samples:    buf.Data,
	}, nil
}

// WriteFile encodes a clip as a 16-bit PCM WAV file at path.
func WriteFile(path string, clip Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	defer f.Close()
	return Encode(f, clip)
}

// Encode writes a clip as 16-bit PCM WAV to f.
func Encode(f *os.File, clip Clip) error {
	if clip.SampleRate <= 0 || clip.Channels <= 0 {
		return fmt.Errorf("invalid clip format: rate=%d channels=%d", clip.SampleRate, clip.Channels)
	}
	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{NumChannels: clip.Channels, SampleRate: clip.SampleRate},
		Data:   clip.Samples,
	}
	enc := wav.NewEncoder(f, clip.SampleRate, 16, clip.Channels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
