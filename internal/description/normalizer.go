package description

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"reelqueue/internal/services"
)

// ErrEmptyDescription reports that normalization left nothing to embed.
var ErrEmptyDescription = errors.New("description is empty after normalization")

// DefaultMaxRunes bounds descriptions when no limit is configured.
const DefaultMaxRunes = 4000

// Normalizer canonicalizes description text. It is pure: the same input
// always yields the same output.
type Normalizer struct {
	MaxRunes int
}

// NewNormalizer returns a Normalizer truncating at maxRunes.
func NewNormalizer(maxRunes int) Normalizer {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	return Normalizer{MaxRunes: maxRunes}
}

// Normalize applies NFC, strips control and format characters, collapses
// whitespace runs, and truncates to MaxRunes on a rune boundary.
func (n Normalizer) Normalize(raw string) (string, error) {
	text := norm.NFC.String(raw)

	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case unicode.Is(unicode.Cc, r), unicode.Is(unicode.Cf, r), r == unicode.ReplacementChar:
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	out := b.String()

	limit := n.MaxRunes
	if limit <= 0 {
		limit = DefaultMaxRunes
	}
	if runes := []rune(out); len(runes) > limit {
		out = strings.TrimSpace(string(runes[:limit]))
	}
	if out == "" {
		return "", services.Wrap(services.ErrValidation, "preprocess", "normalize", "", ErrEmptyDescription)
	}
	return out, nil
}
