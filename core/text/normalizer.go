// Package text turns scraped post markup into narration-safe plain text.
package text

import (
	"regexp"
	"strings"
	"unicode"

	"storyreel/model"
)

// MaskToken replaces every denylisted word.
const MaskToken = "****"

var denylist = []string{
	"fuck", "fucker", "fucking", "fucked", "motherfucker",
	"shit", "bitch", "cunt", "asshole", "bastard", "dick",
	"dumbass", "pussy", "slut", "whore",
	"nigga", "nigger", "faggot",
}

var (
	linkPattern  = regexp.MustCompile(`\[([^\]]+)\]\([^)\s]+\)`)
	quotePattern = regexp.MustCompile(`(?m)^[ \t]*>+[ \t]?`)

	// Emphasis must not be flanked by whitespace on the inside, like markdown.
	emphasisPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\*\*([^*\s](?:[^*]*[^*\s])?)\*\*`),
		regexp.MustCompile(`__([^_\s](?:[^_]*[^_\s])?)__`),
		regexp.MustCompile(`\*([^*\s](?:[^*]*[^*\s])?)\*`),
		regexp.MustCompile(`~~([^~\s](?:[^~]*[^~\s])?)~~`),
		regexp.MustCompile("```([^`]+)```"),
		regexp.MustCompile("``([^`]+)``"),
		regexp.MustCompile("`([^`]+)`"),
	}

	urlPattern        = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	dotRunPattern     = regexp.MustCompile(`\.{2,}`)

	profanityPattern = buildDenylistPattern(denylist)

	entities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">")
)

func buildDenylistPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Normalize applies the cleaning rules in order and reports whether any word
// was masked. It never fails: text that does not match a rule is kept as-is.
func Normalize(raw string) model.NormalizedText {
	s := linkPattern.ReplaceAllString(raw, "$1")
	s = stripEmphasis(s)
	s = decodeEntities(s)
	s = urlPattern.ReplaceAllString(s, "")
	s = quotePattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
	s = fixDoublePeriods(s)
	s = spaceAfterPunctuation(s)

	masked := false
	s = profanityPattern.ReplaceAllStringFunc(s, func(string) string {
		masked = true
		return MaskToken
	})

	return model.NormalizedText{
		Text:           s,
		OriginalLength: len(raw),
		Masked:         masked,
	}
}

// stripEmphasis repeats until nothing changes so nested markers such as
// "**bold *and* more**" are fully removed in one call.
func stripEmphasis(s string) string {
	for i := 0; i < 8; i++ {
		next := stripEmphasisOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func stripEmphasisOnce(s string) string {
	for _, p := range emphasisPatterns {
		p := p
		s = p.ReplaceAllStringFunc(s, func(m string) string {
			inner := p.FindStringSubmatch(m)[1]
			// "****'****" is two mask tokens, not bold punctuation
			if strings.IndexFunc(inner, isWordRune) >= 0 {
				return inner
			}
			return m
		})
	}
	return s
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// decodeEntities runs to a fixed point so "&amp;lt;" decodes the same way
// whether it is seen once or twice.
func decodeEntities(s string) string {
	for i := 0; i < 4; i++ {
		next := entities.Replace(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func fixDoublePeriods(s string) string {
	return dotRunPattern.ReplaceAllStringFunc(s, func(m string) string {
		if len(m) == 2 {
			return "..."
		}
		return m
	})
}

func isSentencePunct(r rune) bool {
	return r == '.' || r == ',' || r == '!' || r == '?'
}

// spaceAfterPunctuation inserts a space after . , ! ? when a word follows
// directly. Runs of punctuation, closing quotes/brackets and numbers like
// 3.14 or 1,000 are left alone.
func spaceAfterPunctuation(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 16)
	for i, r := range runes {
		b.WriteRune(r)
		if !isSentencePunct(r) || i+1 >= len(runes) {
			continue
		}
		next := runes[i+1]
		switch {
		case unicode.IsSpace(next), isSentencePunct(next):
		case strings.ContainsRune(`"')]}”’`, next):
		case r != '!' && r != '?' && i > 0 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(next):
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}
