package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const movieColumns = `tmdb_id, title, status, release_date, poster_path, runtime, vote_average, vote_count, popularity,
overview, tagline, genres, spoken_languages, production_companies, production_countries, keywords, "cast", created_at, updated_at`

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanMovie(row interface{ Scan(dest ...any) error }) (*Movie, error) {
	var (
		m                                                   Movie
		genres, spoken, companies, countries, keywords, cst string
		createdRaw, updatedRaw                              string
	)
	if err := row.Scan(
		&m.TMDBID, &m.Title, &m.Status, &m.ReleaseDate, &m.PosterPath, &m.Runtime,
		&m.VoteAverage, &m.VoteCount, &m.Popularity, &m.Overview, &m.Tagline,
		&genres, &spoken, &companies, &countries, &keywords, &cst,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	m.Genres = splitList(genres)
	m.SpokenLanguages = splitList(spoken)
	m.ProductionCompanies = splitList(companies)
	m.ProductionCountries = splitList(countries)
	m.Keywords = splitList(keywords)
	m.Cast = splitList(cst)
	if ts, err := parseTimeString(createdRaw); err == nil {
		m.CreatedAt = ts
	}
	if ts, err := parseTimeString(updatedRaw); err == nil {
		m.UpdatedAt = ts
	}
	return &m, nil
}

func getMovie(ctx context.Context, q rowQuerier, tmdbID int64) (*Movie, error) {
	movie, err := scanMovie(q.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE tmdb_id = ?`, tmdbID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("movie %d: %w", tmdbID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get movie %d: %w", tmdbID, err)
	}
	return movie, nil
}

// GetMovie fetches the stored catalog record for tmdbID.
func (s *Store) GetMovie(ctx context.Context, tmdbID int64) (*Movie, error) {
	return getMovie(ensureContext(ctx), s.db, tmdbID)
}

// SaveMovie inserts or merges a catalog record. On update a field changes only
// when the incoming value is non-empty and differs from the stored one. The
// bool reports whether anything changed.
func (s *Store) SaveMovie(ctx context.Context, movie *Movie) (bool, error) {
	if movie == nil || movie.TMDBID <= 0 {
		return false, errors.New("movie requires a positive tmdb id")
	}
	var changed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		changed, err = s.saveMovieTx(ctx, tx, movie)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("save movie %d: %w", movie.TMDBID, err)
	}
	return changed, nil
}

func (s *Store) saveMovieTx(ctx context.Context, tx *sql.Tx, incoming *Movie) (bool, error) {
	timestamp := s.timestamp()
	existing, err := getMovie(ctx, tx, incoming.TMDBID)
	if errors.Is(err, ErrNotFound) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO movies (`+movieColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			append(movieValues(incoming), timestamp, timestamp)...)
		if err != nil {
			return false, fmt.Errorf("insert movie: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	merged, changed := mergeMovie(existing, incoming)
	if !changed {
		return false, nil
	}
	args := append(movieValues(merged)[1:], timestamp, merged.TMDBID)
	if _, err := tx.ExecContext(ctx,
		`UPDATE movies SET title = ?, status = ?, release_date = ?, poster_path = ?, runtime = ?,
            vote_average = ?, vote_count = ?, popularity = ?, overview = ?, tagline = ?, genres = ?,
            spoken_languages = ?, production_companies = ?, production_countries = ?, keywords = ?, "cast" = ?,
            updated_at = ?
         WHERE tmdb_id = ?`, args...); err != nil {
		return false, fmt.Errorf("update movie: %w", err)
	}
	return true, nil
}

func movieValues(m *Movie) []any {
	return []any{
		m.TMDBID,
		strings.TrimSpace(m.Title),
		strings.TrimSpace(m.Status),
		strings.TrimSpace(m.ReleaseDate),
		strings.TrimSpace(m.PosterPath),
		m.Runtime,
		m.VoteAverage,
		m.VoteCount,
		m.Popularity,
		strings.TrimSpace(m.Overview),
		strings.TrimSpace(m.Tagline),
		joinList(m.Genres),
		joinList(m.SpokenLanguages),
		joinList(m.ProductionCompanies),
		joinList(m.ProductionCountries),
		joinList(m.Keywords),
		joinList(m.Cast),
	}
}

func mergeMovie(existing, incoming *Movie) (*Movie, bool) {
	merged := *existing
	changed := false
	mergeString := func(dst *string, value string) {
		if value = strings.TrimSpace(value); value != "" && value != *dst {
			*dst = value
			changed = true
		}
	}
	mergeList := func(dst *[]string, value []string) {
		if joined := joinList(value); joined != "" && joined != joinList(*dst) {
			*dst = splitList(joined)
			changed = true
		}
	}
	mergeString(&merged.Title, incoming.Title)
	mergeString(&merged.Status, incoming.Status)
	mergeString(&merged.ReleaseDate, incoming.ReleaseDate)
	mergeString(&merged.PosterPath, incoming.PosterPath)
	mergeString(&merged.Overview, incoming.Overview)
	mergeString(&merged.Tagline, incoming.Tagline)
	if incoming.Runtime != 0 && incoming.Runtime != merged.Runtime {
		merged.Runtime = incoming.Runtime
		changed = true
	}
	if incoming.VoteAverage != 0 && incoming.VoteAverage != merged.VoteAverage {
		merged.VoteAverage = incoming.VoteAverage
		changed = true
	}
	if incoming.VoteCount != 0 && incoming.VoteCount != merged.VoteCount {
		merged.VoteCount = incoming.VoteCount
		changed = true
	}
	if incoming.Popularity != 0 && incoming.Popularity != merged.Popularity {
		merged.Popularity = incoming.Popularity
		changed = true
	}
	mergeList(&merged.Genres, incoming.Genres)
	mergeList(&merged.SpokenLanguages, incoming.SpokenLanguages)
	mergeList(&merged.ProductionCompanies, incoming.ProductionCompanies)
	mergeList(&merged.ProductionCountries, incoming.ProductionCountries)
	mergeList(&merged.Keywords, incoming.Keywords)
	mergeList(&merged.Cast, incoming.Cast)
	return &merged, changed
}

// AddDiscovered stores a discovered movie and queues it at REFRESH_DATA in one
// transaction. The bool reports whether a new queue item was created.
func (s *Store) AddDiscovered(ctx context.Context, movie *Movie) (bool, error) {
	if movie == nil || movie.TMDBID <= 0 {
		return false, errors.New("movie requires a positive tmdb id")
	}
	var created bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.saveMovieTx(ctx, tx, movie); err != nil {
			return err
		}
		var err error
		created, err = upsertItem(ctx, tx, movie.TMDBID, movie.Title, s.timestamp())
		return err
	})
	if err != nil {
		return false, fmt.Errorf("add discovered movie %d: %w", movie.TMDBID, err)
	}
	return created, nil
}

// SyncMissing queues every stored movie that has no queue item and returns
// how many items were created.
func (s *Store) SyncMissing(ctx context.Context) (int64, error) {
	timestamp := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO queue_items (external_id, title, status, retries, created_at, updated_at)
         SELECT m.tmdb_id, NULLIF(m.title, ''), ?, 0, ?, ?
         FROM movies m
         WHERE NOT EXISTS (SELECT 1 FROM queue_items q WHERE q.external_id = m.tmdb_id)`,
		StatusRefreshData, timestamp, timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("sync missing items: %w", err)
	}
	return res.RowsAffected()
}
