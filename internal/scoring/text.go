package scoring

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinChunkLength is the length a piece of text must exceed to count as a chunk.
const MinChunkLength = 20

var (
	reNonTechnical = regexp.MustCompile(`[^\p{L}\p{N}_\s+#.\-]`)
	reSpaces       = regexp.MustCompile(`\s+`)
	reBoundaries   = regexp.MustCompile(`[\n.;]+`)
)

// Normalize lowercases text, replaces punctuation with spaces while keeping the
// symbols technical vocabulary depends on (+ - # .) and collapses whitespace.
//
// Replacement runs before collapsing so the result is a fixed point:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = reNonTechnical.ReplaceAllString(text, " ")
	text = reSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Chunk splits raw text into claim units on newlines, periods and semicolons.
// Pieces of MinChunkLength characters or fewer are dropped. Chunk never
// substitutes a fallback; an empty result is returned as is.
func Chunk(text string) []string {
	if text == "" {
		return []string{}
	}
	parts := reBoundaries.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) > MinChunkLength {
			out = append(out, p)
		}
	}
	return out
}
