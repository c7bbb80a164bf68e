// Package refresh implements the REFRESH_DATA stage: fetch the latest
// catalog details for an item and merge them into the stored movie record.
package refresh

import (
	"context"
	"log/slog"
	"sync/atomic"

	"reelqueue/internal/logging"
	"reelqueue/internal/queue"
	"reelqueue/internal/services"
	"reelqueue/internal/stage"
)

const stageName = "refresh"

// Fetcher returns catalog details for one movie.
type Fetcher interface {
	GetMovieDetails(ctx context.Context, tmdbID int64) (*queue.Movie, error)
}

// MovieStore persists catalog records.
type MovieStore interface {
	SaveMovie(ctx context.Context, movie *queue.Movie) (bool, error)
}

// Stage is the refresh handler. It always lets the item advance; whether the
// record changed is only logged and counted.
type Stage struct {
	fetcher Fetcher
	movies  MovieStore
	logger  *slog.Logger

	changed   atomic.Int64
	unchanged atomic.Int64
}

// NewStage builds the refresh handler.
func NewStage(fetcher Fetcher, movies MovieStore, logger *slog.Logger) *Stage {
	return &Stage{
		fetcher: fetcher,
		movies:  movies,
		logger:  logging.NewComponentLogger(logger, "refresh"),
	}
}

// Execute fetches and stores details for item.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	movie, err := s.fetcher.GetMovieDetails(ctx, item.ExternalID)
	if err != nil {
		return err
	}
	if movie == nil || movie.TMDBID != item.ExternalID {
		return services.Wrap(services.ErrExternalService, stageName, "fetch details", "response did not match requested id", nil)
	}
	changed, err := s.movies.SaveMovie(ctx, movie)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, "save movie", "", err)
	}
	if changed {
		s.changed.Add(1)
	} else {
		s.unchanged.Add(1)
	}
	if movie.Title != "" {
		item.Title = movie.Title
	}
	logging.WithContext(ctx, s.logger).Debug("movie refreshed",
		logging.Int64(logging.FieldExternalID, item.ExternalID),
		logging.Bool("changed", changed),
	)
	return nil
}

// Counts reports how many refreshes changed the stored record and how many
// did not since the stage was built.
func (s *Stage) Counts() (changed, unchanged int64) {
	return s.changed.Load(), s.unchanged.Load()
}

// HealthCheck reports whether the stage is wired.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.fetcher == nil {
		return stage.Unhealthy(stageName, "tmdb client not configured")
	}
	return stage.Healthy(stageName)
}
