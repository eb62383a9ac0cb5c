package speech

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"storyreel/model"
)

// Engine turns one bounded piece of text into an audio file.
type Engine interface {
	Synthesize(ctx context.Context, text string, voice model.VoiceConfig, outPath string) error
}

// EdgeTTS drives the edge-tts command line client.
type EdgeTTS struct {
	path string
}

// NewEdgeTTS creates an engine using the edge-tts binary at path.
func NewEdgeTTS(path string) *EdgeTTS {
	return &EdgeTTS{path: path}
}

func (e *EdgeTTS) args(text string, voice model.VoiceConfig, outPath string) []string {
	args := []string{"--voice", voice.Voice}
	// "--rate=-10%" so the value is not parsed as a flag
	if voice.Rate != "" {
		args = append(args, "--rate="+voice.Rate)
	}
	return append(args, "--text", text, "--write-media", outPath)
}

// Synthesize implements Engine.
func (e *EdgeTTS) Synthesize(ctx context.Context, text string, voice model.VoiceConfig, outPath string) error {
	cmd := exec.CommandContext(ctx, e.path, e.args(text, voice, outPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &model.ExternalToolError{Tool: "edge-tts", Err: err, Diagnostic: strings.TrimSpace(stderr.String())}
	}
	return nil
}
