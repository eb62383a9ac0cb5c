package caption

import (
	"strings"

	"storyreel/model"
)

// EstimateSegments times the words of text without an aligner by dividing
// duration evenly across them. Uneven speaking rates make this drift.
func EstimateSegments(text string, duration float64) []model.Segment {
	return EstimateFromChunks([]string{text}, []float64{duration})
}

// EstimateFromChunks estimates word timings per synthesized chunk, so drift is
// bounded by a chunk instead of the whole narration. texts and durations are
// paired by index; unpaired entries are ignored.
func EstimateFromChunks(texts []string, durations []float64) []model.Segment {
	n := len(texts)
	if len(durations) < n {
		n = len(durations)
	}
	var segments []model.Segment
	cursor := 0.0
	for i := 0; i < n; i++ {
		words := strings.Fields(texts[i])
		d := durations[i]
		if d < 0 {
			d = 0
		}
		if len(words) == 0 {
			cursor += d
			continue
		}
		step := d / float64(len(words))
		seg := model.Segment{Text: strings.Join(words, " "), Words: make([]model.TimedWord, len(words))}
		for j, w := range words {
			seg.Words[j] = model.TimedWord{
				Text:  w,
				Start: cursor + float64(j)*step,
				End:   cursor + float64(j+1)*step,
			}
		}
		segments = append(segments, seg)
		cursor += d
	}
	return segments
}
