package caption

import (
	"strings"

	"storyreel/model"
)

// DefaultGroupSize is the number of words per on-screen caption.
const DefaultGroupSize = 4

// Chunk flattens the words of all segments and groups them into captions of
// groupSize words; the last caption may be shorter. A caption starts at its
// first word and ends at its last word.
func Chunk(segments []model.Segment, groupSize int) []model.CaptionChunk {
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}
	var words []model.TimedWord
	for _, s := range segments {
		words = append(words, s.Words...)
	}

	chunks := make([]model.CaptionChunk, 0, (len(words)+groupSize-1)/groupSize)
	for i := 0; i < len(words); i += groupSize {
		end := i + groupSize
		if end > len(words) {
			end = len(words)
		}
		group := words[i:end]

		texts := make([]string, 0, len(group))
		for _, w := range group {
			if t := strings.TrimSpace(w.Text); t != "" {
				texts = append(texts, t)
			}
		}
		start := group[0].Start
		duration := group[len(group)-1].End - start
		if duration < 0 {
			duration = 0
		}
		chunks = append(chunks, model.CaptionChunk{
			Text:     strings.Join(texts, " "),
			Start:    start,
			Duration: duration,
		})
	}
	return chunks
}
