// Package caption turns narration audio into timed on-screen captions.
package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"storyreel/logger"
	"storyreel/model"
)

// Transcriber produces word-level timestamps for an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]model.Segment, error)
}

// Whisper runs the openai-whisper CLI with word timestamps enabled.
type Whisper struct {
	path     string
	model    string
	language string
}

// NewWhisper creates a Whisper transcriber. model is e.g. "base.en".
func NewWhisper(path, model string) *Whisper {
	return &Whisper{path: path, model: model, language: "en"}
}

func (w *Whisper) args(audioPath, outDir string) []string {
	return []string{
		audioPath,
		"--model", w.model,
		"--language", w.language,
		"--word_timestamps", "True",
		"--output_format", "json",
		"--output_dir", outDir,
		"--fp16", "False",
		"--verbose", "False",
	}
}

// whisperOutput is the subset of whisper's json result we read.
type whisperOutput struct {
	Segments []struct {
		Text  string `json:"text"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

// Transcribe implements Transcriber.
func (w *Whisper) Transcribe(ctx context.Context, audioPath string) ([]model.Segment, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, &model.ResourceMissingError{Kind: "narration audio", Path: audioPath}
	}
	outDir, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(outDir); err != nil {
			logger.Warn("failed to remove transcription dir", logger.String("dir", outDir), logger.ErrorField(err))
		}
	}()

	cmd := exec.CommandContext(ctx, w.path, w.args(audioPath, outDir)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &model.ExternalToolError{Tool: "whisper", Err: err, Diagnostic: lastLines(stderr.String(), 5)}
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return nil, &model.ExternalToolError{Tool: "whisper", Err: fmt.Errorf("no transcript written: %w", err)}
	}
	return DecodeWhisperJSON(data)
}

// DecodeWhisperJSON converts whisper's json output into segments.
func DecodeWhisperJSON(data []byte) ([]model.Segment, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode whisper transcript: %w", err)
	}
	segments := make([]model.Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		seg := model.Segment{Text: strings.TrimSpace(s.Text)}
		for _, w := range s.Words {
			seg.Words = append(seg.Words, model.TimedWord{
				Text:  strings.TrimSpace(w.Word),
				Start: w.Start,
				End:   w.End,
			})
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
