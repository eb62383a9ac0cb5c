package speech

import (
	"strings"
	"unicode/utf8"
)

// MaxChunkChars bounds the text sent to the engine in one request.
const MaxChunkChars = 250

// SplitText breaks text into chunks of at most max characters on word
// boundaries, preferring to cut right after the last comma or period.
// Lengths count runes, and a single word longer than max is cut into
// max-rune pieces so every chunk stays valid UTF-8.
func SplitText(text string, max int) []string {
	if max <= 0 {
		max = MaxChunkChars
	}
	var chunks []string
	var line []string
	lineLen := 0

	flush := func(words []string) {
		if len(words) > 0 {
			chunks = append(chunks, strings.Join(words, " "))
		}
	}

	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > max {
			flush(line)
			line, lineLen = nil, 0
			r := []rune(word)
			chunks = append(chunks, string(r[:max]))
			word = string(r[max:])
		}

		added := utf8.RuneCountInString(word)
		if len(line) > 0 {
			added++
		}
		if lineLen+added <= max {
			line = append(line, word)
			lineLen += added
			continue
		}

		// cut after the last word that ends a clause, if any
		cut := -1
		for i := len(line) - 1; i > 0; i-- {
			if strings.HasSuffix(line[i-1], ",") || strings.HasSuffix(line[i-1], ".") {
				cut = i
				break
			}
		}
		if cut > 0 {
			flush(line[:cut])
			line = append(append([]string{}, line[cut:]...), word)
		} else {
			flush(line)
			line = []string{word}
		}
		lineLen = utf8.RuneCountInString(strings.Join(line, " "))
		// the carried words plus the new one can still overflow
		if lineLen > max {
			flush(line[:len(line)-1])
			line = []string{word}
			lineLen = utf8.RuneCountInString(word)
		}
	}
	flush(line)
	return chunks
}
