package video

import (
	"strings"
)

// glyphWidth approximates the advance of a bold display font per font-size unit.
const glyphWidth = 0.6

// WrapText breaks text into lines no wider than maxWidth pixels at fontSize.
// A single word wider than the limit gets a line of its own.
func WrapText(text string, maxWidth, fontSize int) []string {
	maxChars := int(float64(maxWidth) / (glyphWidth * float64(fontSize)))
	if maxChars < 1 {
		maxChars = 1
	}
	var lines []string
	var line []string
	n := 0
	for _, w := range strings.Fields(text) {
		wl := len([]rune(w))
		if len(line) > 0 && n+1+wl > maxChars {
			lines = append(lines, strings.Join(line, " "))
			line, n = nil, 0
		}
		if len(line) > 0 {
			n++
		}
		line = append(line, w)
		n += wl
	}
	if len(line) > 0 {
		lines = append(lines, strings.Join(line, " "))
	}
	return lines
}

var optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)

// quote escapes a filter option value for the option parser, then single
// quotes the result for the filtergraph parser. ffmpeg unescapes both levels.
func quote(s string) string {
	return "'" + strings.ReplaceAll(optionEscaper.Replace(s), "'", `'\''`) + "'"
}

// fontOption picks fontfile= for paths and font= for fontconfig names.
func fontOption(font string) string {
	lower := strings.ToLower(font)
	if strings.ContainsAny(font, `/\`) ||
		strings.HasSuffix(lower, ".ttf") ||
		strings.HasSuffix(lower, ".otf") ||
		strings.HasSuffix(lower, ".ttc") {
		return "fontfile=" + quote(font)
	}
	return "font=" + quote(font)
}
