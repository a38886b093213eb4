package speech

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soundbite-labs/soundbite-core/internal/audio"
	"github.com/soundbite-labs/soundbite-core/internal/config"
)

func testClip(seconds int) audio.Clip {
	samples := make([]int, 16000*seconds)
	return audio.Clip{SampleRate: 16000, Channels: 1, Samples: samples}
}

func TestMockTranscriberWordCadence(t *testing.T) {
	caps := NewMockCapabilities()
	segments, err := caps.Transcriber.Transcribe(context.Background(), testClip(2))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if got := len(segments[0].Words); got != 4 {
		t.Fatalf("expected 4 words for 2s clip, got %d", got)
	}
	if segments[0].End != 2 {
		t.Fatalf("expected segment end 2, got %f", segments[0].End)
	}
}

func TestMockDiarizerSingleTurn(t *testing.T) {
	caps := NewMockCapabilities()
	turns, err := caps.Diarizer.Diarize(context.Background(), testClip(3))
	if err != nil {
		t.Fatalf("diarize: %v", err)
	}
	if len(turns) != 1 || turns[0].Speaker != "SPEAKER_00" || turns[0].End != 3 {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func TestMockEmbedderIsFlat(t *testing.T) {
	caps := NewMockCapabilities()
	emb, err := caps.Embedder.Embed(context.Background(), "ignored.wav", 0, 1)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if !emb.Flat() || len(emb.Data) != 32 {
		t.Fatalf("expected flat 32-dim embedding, got shape=%v len=%d", emb.Shape, len(emb.Data))
	}
}

// writeScript drops an executable shell script that records its argv and
// prints a canned JSON response.
func writeScript(t *testing.T, response string) (script, argsFile string) {
	t.Helper()
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args.txt")
	script = filepath.Join(dir, "cap.sh")
	body := "#!/bin/sh\necho \"$@\" > " + argsFile + "\necho '" + response + "'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return script, argsFile
}

func TestExecTranscriberParsesResponse(t *testing.T) {
	script, argsFile := writeScript(t, `{"segments":[{"start":0,"end":1,"text":"hi there","words":[{"word":"hi","start":0,"end":0.4},{"word":"there","start":0.4,"end":1}]}]}`)

	caps, err := NewExecCapabilities(config.SpeechConfig{
		TranscribeCommand: script,
		AlignCommand:      script,
		DiarizeCommand:    script,
		EmbedCommand:      script,
		ModelPath:         "/models/base",
		Language:          "en",
	})
	if err != nil {
		t.Fatalf("build capabilities: %v", err)
	}

	segments, err := caps.Transcriber.Transcribe(context.Background(), testClip(1))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(segments) != 1 || len(segments[0].Words) != 2 {
		t.Fatalf("unexpected segments: %+v", segments)
	}

	argv, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read argv: %v", err)
	}
	for _, want := range []string{"--audio", "--model /models/base", "--language en"} {
		if !strings.Contains(string(argv), want) {
			t.Fatalf("expected argv to contain %q, got %q", want, argv)
		}
	}
}

func TestExecEmbedderPassesWindow(t *testing.T) {
	script, argsFile := writeScript(t, `{"shape":[3],"data":[0.1,0.2,0.3]}`)

	caps, err := NewExecCapabilities(config.SpeechConfig{
		TranscribeCommand: script,
		AlignCommand:      script,
		DiarizeCommand:    script,
		EmbedCommand:      script,
	})
	if err != nil {
		t.Fatalf("build capabilities: %v", err)
	}

	emb, err := caps.Embedder.Embed(context.Background(), "seg.wav", 1.5, 2.25)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if !emb.Flat() || len(emb.Data) != 3 {
		t.Fatalf("unexpected embedding: %+v", emb)
	}

	argv, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read argv: %v", err)
	}
	for _, want := range []string{"--start 1.5", "--end 2.25", "--audio seg.wav"} {
		if !strings.Contains(string(argv), want) {
			t.Fatalf("expected argv to contain %q, got %q", want, argv)
		}
	}
}

func TestExecBackendCommandFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "boom.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho broken >&2\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	backend, err := newExecBackend(script, config.SpeechConfig{})
	if err != nil {
		t.Fatalf("build backend: %v", err)
	}
	var out struct{}
	err = backend.run(context.Background(), nil, nil, &out)
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected failure carrying stderr, got %v", err)
	}
}

func TestExecCapabilitiesRejectEmptyCommand(t *testing.T) {
	_, err := NewExecCapabilities(config.SpeechConfig{
		TranscribeCommand: "",
		AlignCommand:      "x",
		DiarizeCommand:    "x",
		EmbedCommand:      "x",
	})
	if err == nil {
		t.Fatal("expected error for empty transcribe command")
	}
}
