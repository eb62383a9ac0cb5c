package video

import (
	"fmt"
	"path/filepath"
	"strings"

	"storyreel/model"
)

// Input indexes of the ffmpeg command built by the compositor.
const (
	inputBackground = 0
	inputNarration  = 1
	inputIntro      = 2
)

// TextFile is a drawtext source the caller must write before rendering.
// Text goes through files so captions never need filtergraph escaping.
type TextFile struct {
	Path    string
	Content string
}

// FilterInput is what BuildFilterGraph needs to know about one render.
type FilterInput struct {
	Crop     Rect
	Captions []model.CaptionChunk
	Title    *model.TitleOverlay
	TextDir  string
}

// BuildFilterGraph returns the filter_complex script producing [vout], plus
// the text files it references.
func (l Layout) BuildFilterGraph(in FilterInput) (string, []TextFile) {
	var b strings.Builder
	var files []TextFile

	fmt.Fprintf(&b, "[%d:v]crop=%d:%d:%d:%d,scale=%d:%d,setsar=1,fps=%d[bg];\n",
		inputBackground, in.Crop.W, in.Crop.H, in.Crop.X, in.Crop.Y, l.Width, l.Height, l.FPS)

	last := "bg"
	var draws []string

	if in.Title != nil {
		end := in.Title.Duration
		introW := l.IntroPixelWidth()
		fmt.Fprintf(&b, "[%d:v]scale=%d:-2[intro];\n", inputIntro, introW)
		fmt.Fprintf(&b, "[bg][intro]overlay=(W-w)/2:(H-h)/2:enable=%s[titled];\n", between(0, end))
		last = "titled"

		lines := WrapText(strings.ToUpper(in.Title.Text), introW-2*l.TitlePadding, l.TitleFontSize)
		titleLine := lineHeight(l.TitleFontSize)
		top := l.Height/2 - len(lines)*titleLine/2
		x := (l.Width-introW)/2 + l.TitlePadding
		for i, line := range lines {
			path := filepath.Join(in.TextDir, fmt.Sprintf("title_%02d.txt", i))
			files = append(files, TextFile{Path: path, Content: line})
			draws = append(draws, fmt.Sprintf(
				"drawtext=textfile=%s:expansion=none:%s:fontsize=%d:fontcolor=black:x=%d:y=%d:enable=%s",
				quote(path), fontOption(l.TitleFont), l.TitleFontSize, x, top+i*titleLine, between(0, end)))
		}
	}

	captionLine := lineHeight(l.CaptionFontSize)
	center := int(float64(l.Height) * l.CaptionY)
	for ci, c := range in.Captions {
		lines := WrapText(strings.ToUpper(c.Text), l.CaptionWidth(), l.CaptionFontSize)
		top := center - len(lines)*captionLine/2
		for li, line := range lines {
			path := filepath.Join(in.TextDir, fmt.Sprintf("caption_%04d_%d.txt", ci, li))
			files = append(files, TextFile{Path: path, Content: line})
			draws = append(draws, fmt.Sprintf(
				"drawtext=textfile=%s:expansion=none:%s:fontsize=%d:fontcolor=white:borderw=%d:bordercolor=black:x=(w-text_w)/2:y=%d:enable=%s",
				quote(path), fontOption(l.CaptionFont), l.CaptionFontSize, l.CaptionBorder, top+li*captionLine, between(c.Start, c.End())))
		}
	}

	if len(draws) == 0 {
		fmt.Fprintf(&b, "[%s]null[vout]", last)
	} else {
		fmt.Fprintf(&b, "[%s]%s[vout]", last, strings.Join(draws, ",\n"))
	}
	return b.String(), files
}

func between(start, end float64) string {
	return fmt.Sprintf("'between(t,%s,%s)'", seconds(start), seconds(end))
}

func lineHeight(fontSize int) int {
	return fontSize * 6 / 5
}
