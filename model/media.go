package model

// NormalizedText is narration-safe text produced by the text normalizer.
type NormalizedText struct {
	Text           string `json:"text"`
	OriginalLength int    `json:"originalLength"`
	Masked         bool   `json:"masked"` // at least one denylisted word was masked
}

// NarrationTrack is a synthesized audio file owned by a single pipeline run.
// The run deletes it when it finishes.
type NarrationTrack struct {
	Path     string      `json:"path"`
	Duration float64     `json:"duration"` // seconds
	Voice    VoiceConfig `json:"voice"`
	// ChunkTexts and ChunkDurations describe each synthesized text chunk, in order.
	ChunkTexts     []string  `json:"chunkTexts"`
	ChunkDurations []float64 `json:"chunkDurations"`
}

// TimedWord is a transcribed word with its position on the audio timeline.
type TimedWord struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment groups words as returned by the alignment backend.
type Segment struct {
	Text  string      `json:"text,omitempty"`
	Words []TimedWord `json:"words"`
}

// CaptionChunk is one on-screen caption.
type CaptionChunk struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns the time the caption disappears.
func (c CaptionChunk) End() float64 {
	return c.Start + c.Duration
}

// BackgroundClip references a source video in the background library.
type BackgroundClip struct {
	Path     string `json:"path"`
	Category string `json:"category"`
}

// TitleOverlay is the intro card shown at the start of the timeline.
type TitleOverlay struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
}

// CompositionJob is everything the compositor needs to render one video.
type CompositionJob struct {
	ID         string
	Narration  *NarrationTrack
	Captions   []CaptionChunk
	Background BackgroundClip
	Title      *TitleOverlay // nil when no intro card is rendered
	OutputPath string
	// ProgressFrom/ProgressTo is the slice of overall job progress reserved
	// for rendering, e.g. 80..100.
	ProgressFrom int
	ProgressTo   int
	OnProgress   func(percent int)
}
