package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func toneClip(rate int, seconds float64) Clip {
	n := int(float64(rate) * seconds)
	samples := make([]int, n)
	for i := range samples {
		samples[i] = int(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return Clip{SampleRate: rate, Channels: 1, Samples: samples}
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.wav")
	clip := toneClip(16000, 0.5)
	if err := WriteFile(path, clip); err != nil {
		t.Fatalf("write wav: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load wav: %v", err)
	}
	if loaded.SampleRate != 16000 || loaded.Channels != 1 {
		t.Fatalf("unexpected format: rate=%d channels=%d", loaded.SampleRate, loaded.Channels)
	}
	if len(loaded.Samples) != len(clip.Samples) {
		t.Fatalf("expected %d samples, got %d", len(clip.Samples), len(loaded.Samples))
	}
	if d := loaded.Duration(); math.Abs(d-0.5) > 0.01 {
		t.Fatalf("expected duration ~0.5s, got %f", d)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	if err := os.WriteFile(path, []byte("definitely not riff data"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-wav payload")
	}
}
