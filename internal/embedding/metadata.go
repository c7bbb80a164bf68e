package embedding

import (
	"strconv"
	"strings"
	"time"

	"reelqueue/internal/queue"
)

// Metadata is stored alongside each vector and returned with search matches.
type Metadata struct {
	TMDBID      int64   `json:"tmdb_id"`
	Title       string  `json:"title"`
	Runtime     int     `json:"runtime"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
	Popularity  float64 `json:"popularity"`
	Status      string  `json:"status"`
	Overview    string  `json:"overview,omitempty"`
	ReleaseDate int     `json:"release_date,omitempty"`
	Genres      string  `json:"genres,omitempty"`
	PosterPath  string  `json:"poster_path,omitempty"`
	Cast        string  `json:"cast,omitempty"`
}

// MetadataFor derives the stored metadata from a movie record. The release
// date is kept as a YYYYMMDD integer so it can be range-filtered.
func MetadataFor(movie *queue.Movie) Metadata {
	if movie == nil {
		return Metadata{}
	}
	return Metadata{
		TMDBID:      movie.TMDBID,
		Title:       movie.Title,
		Runtime:     movie.Runtime,
		VoteAverage: movie.VoteAverage,
		VoteCount:   movie.VoteCount,
		Popularity:  movie.Popularity,
		Status:      movie.Status,
		Overview:    movie.Overview,
		ReleaseDate: releaseDateInt(movie.ReleaseDate),
		Genres:      strings.Join(movie.Genres, ", "),
		PosterPath:  movie.PosterPath,
		Cast:        strings.Join(movie.Cast, ", "),
	}
}

func releaseDateInt(raw string) int {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(t.Format("20060102"))
	return n
}
