package caption

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/model"
)

func evenWords(n int) []model.TimedWord {
	words := make([]model.TimedWord, n)
	for i := range words {
		start := float64(i) * 0.5
		words[i] = model.TimedWord{Text: "w" + string(rune('a'+i)), Start: start, End: start + 0.4}
	}
	return words
}

func TestChunkTwelveEvenWords(t *testing.T) {
	chunks := Chunk([]model.Segment{{Words: evenWords(12)}}, 4)

	require.Len(t, chunks, 3)
	for i, want := range []float64{0.0, 2.0, 4.0} {
		assert.InDelta(t, want, chunks[i].Start, 1e-9)
		assert.InDelta(t, 1.9, chunks[i].Duration, 1e-9)
	}
	assert.Equal(t, "wa wb wc wd", chunks[0].Text)
}

func TestChunkProperties(t *testing.T) {
	for n := 1; n <= 13; n++ {
		for g := 1; g <= 5; g++ {
			words := evenWords(n)
			// split across segments to check flattening
			segments := []model.Segment{{Words: words[:n/2]}, {Words: words[n/2:]}}
			chunks := Chunk(segments, g)

			assert.Len(t, chunks, (n+g-1)/g, "n=%d g=%d", n, g)
			assert.Equal(t, words[0].Start, chunks[0].Start)
			last := chunks[len(chunks)-1]
			assert.InDelta(t, words[n-1].End, last.End(), 1e-9)

			var joined []string
			for _, c := range chunks {
				joined = append(joined, c.Text)
			}
			var want []string
			for _, w := range words {
				want = append(want, w.Text)
			}
			assert.Equal(t, strings.Join(want, " "), strings.Join(joined, " "))
		}
	}
}

func TestChunkDefaultsAndEmpty(t *testing.T) {
	assert.Empty(t, Chunk(nil, 4))
	assert.Len(t, Chunk([]model.Segment{{Words: evenWords(8)}}, 0), 2)
}

func TestChunkTrimsWords(t *testing.T) {
	chunks := Chunk([]model.Segment{{Words: []model.TimedWord{
		{Text: " Hello", Start: 0, End: 0.3},
		{Text: " world. ", Start: 0.3, End: 0.7},
	}}}, 4)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world.", chunks[0].Text)
}

type fakeTranscriber struct {
	segments []model.Segment
	err      error
}

func (f fakeTranscriber) Transcribe(context.Context, string) ([]model.Segment, error) {
	return f.segments, f.err
}

func TestAlignShiftsByOffset(t *testing.T) {
	a := NewAligner(fakeTranscriber{segments: []model.Segment{{Words: []model.TimedWord{
		{Text: "one", Start: 0, End: 0.5},
		{Text: "two", Start: 0.6, End: 1.0},
	}}}})

	segments, err := a.Align(context.Background(), "body.mp3", 2.5)
	require.NoError(t, err)
	assert.Equal(t, []model.TimedWord{
		{Text: "one", Start: 2.5, End: 3.0},
		{Text: "two", Start: 3.1, End: 3.5},
	}, segments[0].Words)
}

func TestAlignFailureIsFatal(t *testing.T) {
	a := NewAligner(fakeTranscriber{err: &model.ExternalToolError{Tool: "whisper", Err: errors.New("model load")}})

	_, err := a.Align(context.Background(), "body.mp3", 0)
	assert.True(t, errors.Is(err, model.ErrExternalTool))
}

func TestShiftDoesNotMutateInput(t *testing.T) {
	in := []model.Segment{{Words: []model.TimedWord{{Text: "a", Start: 1, End: 2}}}}
	_ = Shift(in, 10)
	assert.Equal(t, 1.0, in[0].Words[0].Start)
}

func TestDecodeWhisperJSON(t *testing.T) {
	data := []byte(`{"text":" Hi there.","segments":[
		{"id":0,"text":" Hi there.","words":[
			{"word":" Hi","start":0.0,"end":0.32,"probability":0.9},
			{"word":" there.","start":0.32,"end":0.8,"probability":0.8}]}],
		"language":"en"}`)

	segments, err := DecodeWhisperJSON(data)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "Hi there.", segments[0].Text)
	assert.Equal(t, model.TimedWord{Text: "there.", Start: 0.32, End: 0.8}, segments[0].Words[1])

	_, err = DecodeWhisperJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestWhisperMissingAudio(t *testing.T) {
	_, err := NewWhisper("whisper", "base.en").Transcribe(context.Background(), "/nonexistent/body.mp3")
	assert.True(t, errors.Is(err, model.ErrResourceMissing))
}

func TestEstimateSegments(t *testing.T) {
	segments := EstimateSegments("one two three four", 2)
	require.Len(t, segments, 1)
	words := segments[0].Words
	require.Len(t, words, 4)
	assert.InDelta(t, 0.0, words[0].Start, 1e-9)
	assert.InDelta(t, 0.5, words[1].Start, 1e-9)
	assert.InDelta(t, 2.0, words[3].End, 1e-9)
	for i := 1; i < len(words); i++ {
		assert.LessOrEqual(t, words[i-1].End, words[i].Start+1e-9)
	}
	assert.Empty(t, EstimateSegments("   ", 3))
}

func TestEstimateFromChunks(t *testing.T) {
	segments := EstimateFromChunks(
		[]string{"a b", "", "c d e f"},
		[]float64{1, 0.5, 2})

	require.Len(t, segments, 2)
	assert.InDelta(t, 0.5, segments[0].Words[1].Start, 1e-9)
	// the empty chunk still advances the timeline
	assert.InDelta(t, 1.5, segments[1].Words[0].Start, 1e-9)
	assert.InDelta(t, 3.5, segments[1].Words[3].End, 1e-9)
}
