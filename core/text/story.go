package text

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultTitle is used when the input has no separate body line.
const DefaultTitle = "Reddit Story"

// Story is a cleaned title/body pair ready for narration.
type Story struct {
	Title  string
	Body   string
	Masked bool
}

// SplitStory treats the first line of raw as the title and the rest as the
// body, cleaning both.
func SplitStory(raw string) Story {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	rawTitle, rawBody, _ := strings.Cut(strings.TrimSpace(raw), "\n")

	title := Normalize(rawTitle)
	body := Normalize(rawBody)

	s := Story{Title: title.Text, Body: body.Text, Masked: title.Masked || body.Masked}
	if s.Title == "" {
		s.Title = strings.TrimSpace(rawTitle)
	}
	if s.Body == "" {
		s.Body = s.Title
		s.Title = DefaultTitle
	}
	return s
}

var (
	nonFilenameRune = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	nonTitleRune    = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// SafeFilename folds text to a lowercase ASCII slug usable as a file name.
func SafeFilename(s string, maxLen int) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	ascii := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)
	slug := strings.ReplaceAll(strings.TrimSpace(ascii), " ", "_")
	slug = strings.ToLower(nonFilenameRune.ReplaceAllString(slug, "_"))
	if maxLen > 0 && len(slug) > maxLen {
		slug = slug[:maxLen]
	}
	return slug
}

// PrettifyTitle drops punctuation and capitalizes each word, capped at 100 chars.
func PrettifyTitle(title string) string {
	words := strings.Fields(nonTitleRune.ReplaceAllString(title, ""))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	out := strings.Join(words, " ")
	if r := []rune(out); len(r) > 100 {
		out = string(r[:100])
	}
	return out
}
