package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const latinPunctuation = ".,!?;:/'\"()-[]\u2013\u2014\u201c\u201d\u2018\u2019@"

// MostlyLatin reports whether at least threshold of the runes in title are
// Latin letters, ASCII digits, whitespace or common punctuation. The title
// is NFC-normalized first so decomposed accents count as one rune. An empty
// title is not mostly Latin.
func MostlyLatin(title string, threshold float64) bool {
	title = strings.TrimSpace(norm.NFC.String(title))
	if title == "" {
		return false
	}
	var total, latin int
	for _, r := range title {
		total++
		switch {
		case unicode.Is(unicode.Latin, r),
			r >= '0' && r <= '9',
			unicode.IsSpace(r),
			strings.ContainsRune(latinPunctuation, r):
			latin++
		}
	}
	return float64(latin)/float64(total) >= threshold
}
