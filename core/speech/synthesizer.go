// Package speech produces narration tracks from normalized text.
package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"storyreel/model"
)

// AudioTool is the subset of the media runner the synthesizer needs.
type AudioTool interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ConcatAudio(ctx context.Context, inputs []string, out string) error
}

// Synthesizer chunks text, synthesizes each chunk and joins the results.
type Synthesizer struct {
	engine   Engine
	audio    AudioTool
	log      *zap.Logger
	maxChars int
}

// NewSynthesizer creates a new Synthesizer.
func NewSynthesizer(engine Engine, audio AudioTool, log *zap.Logger) *Synthesizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{engine: engine, audio: audio, log: log, maxChars: MaxChunkChars}
}

// Synthesize writes the narration for text to outPath. Either the whole
// text is synthesized or an error is returned and outPath does not exist.
// Per-chunk files never outlive the call.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, profile model.VoiceProfile, outPath string) (*model.NarrationTrack, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &model.InputError{Field: "text", Reason: "nothing to narrate"}
	}
	voice := profile.Config()
	chunks := SplitText(text, s.maxChars)

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}
	workDir, err := os.MkdirTemp(filepath.Dir(outPath), ".tts-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			s.log.Warn("failed to remove synthesis work dir", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	s.log.Info("synthesizing narration",
		zap.String("voice", voice.Voice),
		zap.String("rate", voice.Rate),
		zap.Int("chunks", len(chunks)),
		zap.Int("chars", len(text)))

	files := make([]string, 0, len(chunks))
	durations := make([]float64, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunkPath := filepath.Join(workDir, fmt.Sprintf("chunk_%03d.mp3", i))
		if err := s.engine.Synthesize(ctx, chunk, voice, chunkPath); err != nil {
			return nil, fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
		}
		d, err := s.audio.ProbeDuration(ctx, chunkPath)
		if err != nil {
			return nil, fmt.Errorf("chunk %d duration: %w", i+1, err)
		}
		files = append(files, chunkPath)
		durations = append(durations, d)
	}

	if err := s.join(ctx, files, outPath); err != nil {
		os.Remove(outPath)
		return nil, err
	}

	total, err := s.audio.ProbeDuration(ctx, outPath)
	if err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("narration duration: %w", err)
	}

	return &model.NarrationTrack{
		Path:           outPath,
		Duration:       total,
		Voice:          voice,
		ChunkTexts:     chunks,
		ChunkDurations: durations,
	}, nil
}

func (s *Synthesizer) join(ctx context.Context, files []string, outPath string) error {
	if len(files) == 1 {
		if err := os.Rename(files[0], outPath); err != nil {
			return fmt.Errorf("failed to move narration into place: %w", err)
		}
		return nil
	}
	if err := s.audio.ConcatAudio(ctx, files, outPath); err != nil {
		return fmt.Errorf("concatenate %d chunks: %w", len(files), err)
	}
	return nil
}
