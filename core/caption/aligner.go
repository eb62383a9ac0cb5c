package caption

import (
	"context"
	"fmt"

	"storyreel/model"
)

// Aligner places transcribed words on the master timeline.
type Aligner struct {
	transcriber Transcriber
}

// NewAligner creates an Aligner backed by transcriber.
func NewAligner(transcriber Transcriber) *Aligner {
	return &Aligner{transcriber: transcriber}
}

// Align transcribes audioPath and shifts every word by offset seconds, for
// audio that starts later on the timeline than the composed track.
func (a *Aligner) Align(ctx context.Context, audioPath string, offset float64) ([]model.Segment, error) {
	segments, err := a.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", audioPath, err)
	}
	return Shift(segments, offset), nil
}

// Shift returns a copy of segments with every timestamp moved by offset.
func Shift(segments []model.Segment, offset float64) []model.Segment {
	out := make([]model.Segment, len(segments))
	for i, s := range segments {
		words := make([]model.TimedWord, len(s.Words))
		for j, w := range s.Words {
			words[j] = model.TimedWord{Text: w.Text, Start: w.Start + offset, End: w.End + offset}
		}
		out[i] = model.Segment{Text: s.Text, Words: words}
	}
	return out
}
