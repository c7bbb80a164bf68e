package description

import (
	"strings"

	"reelqueue/internal/queue"
)

type field struct {
	label string
	value string
}

// Compose builds the labelled description for movie. Empty fields are
// omitted and trailing sentence punctuation is dropped from the overview and
// tagline so the ". " joiner does not double it.
func Compose(movie *queue.Movie) string {
	if movie == nil {
		return ""
	}
	fields := []field{
		{"Overview", trimSentence(movie.Overview)},
		{"Tagline", trimSentence(movie.Tagline)},
		{"Keywords", strings.Join(movie.Keywords, ", ")},
		{"Genres", strings.Join(movie.Genres, ", ")},
		{"Production Companies", strings.Join(movie.ProductionCompanies, ", ")},
		{"Production Countries", strings.Join(movie.ProductionCountries, ", ")},
		{"Spoken Languages", strings.Join(movie.SpokenLanguages, ", ")},
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if v := strings.TrimSpace(f.value); v != "" {
			parts = append(parts, f.label+": "+v)
		}
	}
	return strings.Join(parts, ". ")
}

func trimSentence(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".?!")
}
