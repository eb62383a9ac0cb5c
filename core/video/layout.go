// Package video renders the final vertical video with ffmpeg.
package video

import "math"

// Output format.
const (
	TargetWidth   = 1080
	TargetHeight  = 1920
	FrameRate     = 30
	VideoCodec    = "libx264"
	AudioCodec    = "aac"
	TitleDuration = 3.0 // seconds the intro card stays on screen
)

// Layout holds the fixed visual policy of a rendered video.
type Layout struct {
	Width  int
	Height int
	FPS    int

	CaptionFont     string
	CaptionFontSize int
	CaptionY        float64 // vertical center of captions as a fraction of frame height
	CaptionMargin   int     // horizontal margin on each side
	CaptionBorder   int

	TitleFont     string
	TitleFontSize int
	IntroImage    string
	IntroWidth    float64 // intro image width as a fraction of frame width
	TitlePadding  int     // left inset of title text inside the intro image
	TitleDuration float64

	VideoCodec   string
	AudioCodec   string
	Preset       string
	AudioBitrate string
}

// DefaultLayout returns the standard 1080x1920 layout.
func DefaultLayout() Layout {
	return Layout{
		Width:  TargetWidth,
		Height: TargetHeight,
		FPS:    FrameRate,

		CaptionFont:     "Impact",
		CaptionFontSize: 80,
		CaptionY:        0.65,
		CaptionMargin:   50,
		CaptionBorder:   6,

		TitleFont:     "Impact",
		TitleFontSize: 60,
		IntroWidth:    0.9,
		TitlePadding:  40,
		TitleDuration: TitleDuration,

		VideoCodec:   VideoCodec,
		AudioCodec:   AudioCodec,
		Preset:       "veryfast",
		AudioBitrate: "192k",
	}
}

// CaptionWidth is the usable caption width in pixels.
func (l Layout) CaptionWidth() int {
	return l.Width - 2*l.CaptionMargin
}

// IntroPixelWidth is the scaled intro image width, rounded down to even.
func (l Layout) IntroPixelWidth() int {
	return even(int(math.Round(float64(l.Width) * l.IntroWidth)))
}

func even(n int) int {
	return n &^ 1
}
