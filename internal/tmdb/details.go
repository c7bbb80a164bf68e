package tmdb

import (
	"strings"

	"reelqueue/internal/queue"
)

const castLimit = 5

type named struct {
	Name string `json:"name"`
}

type language struct {
	EnglishName string `json:"english_name"`
	Name        string `json:"name"`
}

// Details is the subset of the TMDB movie payload the pipeline stores.
type Details struct {
	ID                  int64      `json:"id"`
	Title               string     `json:"title"`
	OriginalTitle       string     `json:"original_title"`
	Status              string     `json:"status"`
	ReleaseDate         string     `json:"release_date"`
	PosterPath          string     `json:"poster_path"`
	Runtime             int        `json:"runtime"`
	Overview            string     `json:"overview"`
	Tagline             string     `json:"tagline"`
	Popularity          float64    `json:"popularity"`
	VoteAverage         float64    `json:"vote_average"`
	VoteCount           int        `json:"vote_count"`
	Genres              []named    `json:"genres"`
	SpokenLanguages     []language `json:"spoken_languages"`
	ProductionCompanies []named    `json:"production_companies"`
	ProductionCountries []named    `json:"production_countries"`
	Keywords            struct {
		Keywords []named `json:"keywords"`
	} `json:"keywords"`
	Credits struct {
		Cast []named `json:"cast"`
	} `json:"credits"`
}

// Movie converts the payload into the stored catalog record.
func (d *Details) Movie() *queue.Movie {
	if d == nil {
		return nil
	}
	cast := d.Credits.Cast
	if len(cast) > castLimit {
		cast = cast[:castLimit]
	}
	spoken := make([]string, 0, len(d.SpokenLanguages))
	for _, lang := range d.SpokenLanguages {
		name := strings.TrimSpace(lang.EnglishName)
		if name == "" {
			name = strings.TrimSpace(lang.Name)
		}
		if name != "" {
			spoken = append(spoken, name)
		}
	}
	return &queue.Movie{
		TMDBID:              d.ID,
		Title:               strings.TrimSpace(d.Title),
		Status:              strings.TrimSpace(d.Status),
		ReleaseDate:         strings.TrimSpace(d.ReleaseDate),
		PosterPath:          strings.TrimSpace(d.PosterPath),
		Runtime:             d.Runtime,
		VoteAverage:         d.VoteAverage,
		VoteCount:           d.VoteCount,
		Popularity:          d.Popularity,
		Overview:            strings.TrimSpace(d.Overview),
		Tagline:             strings.TrimSpace(d.Tagline),
		Genres:              names(d.Genres),
		SpokenLanguages:     spoken,
		ProductionCompanies: names(d.ProductionCompanies),
		ProductionCountries: names(d.ProductionCountries),
		Keywords:            names(d.Keywords.Keywords),
		Cast:                names(cast),
	}
}

func names(values []named) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if name := strings.TrimSpace(v.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
