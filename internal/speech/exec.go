package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/soundbite-labs/soundbite-core/internal/audio"
	"github.com/soundbite-labs/soundbite-core/internal/config"
)

// execBackend invokes an external command for one capability. The command is
// given the audio via --audio and replies with a single JSON document on
// stdout. One invocation at a time per backend; the models behind these
// commands are rarely reentrant.
type execBackend struct {
	cmd []string
	cfg config.SpeechConfig
	mu  sync.Mutex
}

func newExecBackend(command string, cfg config.SpeechConfig) (*execBackend, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse capability command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capability command is empty")
	}
	return &execBackend{cmd: args, cfg: cfg}, nil
}

// NewExecCapabilities builds exec-backed implementations of all four
// recognition collaborators from config.
func NewExecCapabilities(cfg config.SpeechConfig) (Capabilities, error) {
	transcribe, err := newExecBackend(cfg.TranscribeCommand, cfg)
	if err != nil {
		return Capabilities{}, fmt.Errorf("transcriber: %w", err)
	}
	align, err := newExecBackend(cfg.AlignCommand, cfg)
	if err != nil {
		return Capabilities{}, fmt.Errorf("aligner: %w", err)
	}
	diarize, err := newExecBackend(cfg.DiarizeCommand, cfg)
	if err != nil {
		return Capabilities{}, fmt.Errorf("diarizer: %w", err)
	}
	embed, err := newExecBackend(cfg.EmbedCommand, cfg)
	if err != nil {
		return Capabilities{}, fmt.Errorf("embedder: %w", err)
	}
	return Capabilities{
		Transcriber: (*execTranscriber)(transcribe),
		Aligner:     (*execAligner)(align),
		Diarizer:    (*execDiarizer)(diarize),
		Embedder:    (*execEmbedder)(embed),
	}, nil
}

func (b *execBackend) run(ctx context.Context, stdin []byte, extraArgs []string, out any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	args := append([]string{}, b.cmd[1:]...)
	args = append(args, extraArgs...)
	if b.cfg.ModelPath != "" {
		args = append(args, "--model", b.cfg.ModelPath)
	}
	if b.cfg.Language != "" {
		args = append(args, "--language", b.cfg.Language)
	}

	command := exec.CommandContext(ctx, b.cmd[0], args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	if stdin != nil {
		command.Stdin = bytes.NewReader(stdin)
	}

	if err := command.Run(); err != nil {
		return fmt.Errorf("capability command failed: %w: %s", err, stderr.String())
	}
	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return fmt.Errorf("decode capability response: %w", err)
	}
	return nil
}

// writeClip spills a decoded clip back to a temp WAV for commands that take
// a file path.
func (b *execBackend) writeClip(clip audio.Clip) (string, func(), error) {
	file, err := os.CreateTemp(os.TempDir(), "soundbite_cap_*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("temp file: %w", err)
	}
	cleanup := func() { os.Remove(file.Name()) }
	if err := audio.Encode(file, clip); err != nil {
		file.Close()
		cleanup()
		return "", nil, err
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return file.Name(), cleanup, nil
}

type execTranscriber execBackend

type transcribeResponse struct {
	Segments []Segment `json:"segments"`
}

func (t *execTranscriber) Transcribe(ctx context.Context, clip audio.Clip) ([]Segment, error) {
	b := (*execBackend)(t)
	path, cleanup, err := b.writeClip(clip)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var resp transcribeResponse
	if err := b.run(ctx, nil, []string{"--audio", path}, &resp); err != nil {
		return nil, err
	}
	return resp.Segments, nil
}

type execAligner execBackend

type alignRequest struct {
	Segments []Segment `json:"segments"`
}

type alignResponse struct {
	Segments []Segment `json:"segments"`
}

func (a *execAligner) Align(ctx context.Context, segments []Segment, audioPath string) ([]Segment, error) {
	b := (*execBackend)(a)
	payload, err := json.Marshal(alignRequest{Segments: segments})
	if err != nil {
		return nil, fmt.Errorf("encode align request: %w", err)
	}
	var resp alignResponse
	if err := b.run(ctx, payload, []string{"--audio", audioPath}, &resp); err != nil {
		return nil, err
	}
	return resp.Segments, nil
}

type execDiarizer execBackend

type diarizeResponse struct {
	Turns []Turn `json:"turns"`
}

func (d *execDiarizer) Diarize(ctx context.Context, clip audio.Clip) ([]Turn, error) {
	b := (*execBackend)(d)
	path, cleanup, err := b.writeClip(clip)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var resp diarizeResponse
	if err := b.run(ctx, nil, []string{"--audio", path}, &resp); err != nil {
		return nil, err
	}
	return resp.Turns, nil
}

type execEmbedder execBackend

func (e *execEmbedder) Embed(ctx context.Context, audioPath string, start, end float64) (Embedding, error) {
	b := (*execBackend)(e)
	args := []string{
		"--audio", audioPath,
		"--start", strconv.FormatFloat(start, 'f', -1, 64),
		"--end", strconv.FormatFloat(end, 'f', -1, 64),
	}
	var emb Embedding
	if err := b.run(ctx, nil, args, &emb); err != nil {
		return Embedding{}, err
	}
	return emb, nil
}
