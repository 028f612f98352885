package scoring

import (
	"strings"
	"unicode/utf8"
)

// LexicalOverlap is the Jaccard index of the distinct whitespace tokens longer
// than two characters in a and b. Two texts without such tokens score 0.5.
func LexicalOverlap(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)

	inter := 0
	for tok := range sa {
		if _, ok := sb[tok]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0.5
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		if utf8.RuneCountInString(tok) > 2 {
			set[tok] = struct{}{}
		}
	}
	return set
}
