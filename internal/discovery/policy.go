package discovery

import (
	"strings"

	"reelqueue/internal/queue"
)

// DefaultAllowedLanguages are the spoken languages accepted when none are configured.
var DefaultAllowedLanguages = []string{"english", "turkish", "swedish"}

// Policy decides which discovered movies are worth queueing.
type Policy struct {
	allowed map[string]struct{}
}

// NewPolicy builds a policy accepting the given spoken languages (English names,
// case-insensitive).
func NewPolicy(languages []string) Policy {
	if len(languages) == 0 {
		languages = DefaultAllowedLanguages
	}
	allowed := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
			allowed[lang] = struct{}{}
		}
	}
	return Policy{allowed: allowed}
}

// Evaluate returns whether movie is acceptable and, when it is not, a short
// reason for logs.
//
// A movie needs at least one allowed spoken language, and it must not be
// purely a documentary, purely music, or both.
func (p Policy) Evaluate(movie *queue.Movie) (bool, string) {
	if movie == nil {
		return false, "missing details"
	}
	if len(movie.Genres) == 0 {
		return false, "no genres"
	}
	if len(movie.SpokenLanguages) == 0 {
		return false, "no spoken languages"
	}
	hasLanguage := false
	for _, lang := range movie.SpokenLanguages {
		if _, ok := p.allowed[strings.ToLower(strings.TrimSpace(lang))]; ok {
			hasLanguage = true
			break
		}
	}
	if !hasLanguage {
		return false, "no allowed spoken language"
	}
	genres := make(map[string]struct{}, len(movie.Genres))
	for _, g := range movie.Genres {
		genres[strings.ToLower(strings.TrimSpace(g))] = struct{}{}
	}
	_, documentary := genres["documentary"]
	_, music := genres["music"]
	switch {
	case documentary && music:
		return false, "documentary and music"
	case len(genres) == 1 && (documentary || music):
		return false, "documentary or music only"
	}
	return true, ""
}

// Acceptable reports whether movie passes the policy.
func (p Policy) Acceptable(movie *queue.Movie) bool {
	ok, _ := p.Evaluate(movie)
	return ok
}
