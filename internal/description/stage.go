package description

import (
	"context"
	"log/slog"

	"reelqueue/internal/logging"
	"reelqueue/internal/queue"
	"reelqueue/internal/stage"
)

const stageName = "preprocess"

// Stage is the PREPROCESS_DESCRIPTION handler.
type Stage struct {
	movies     stage.MovieSource
	normalizer Normalizer
	logger     *slog.Logger
}

// NewStage builds the preprocess handler.
func NewStage(movies stage.MovieSource, normalizer Normalizer, logger *slog.Logger) *Stage {
	return &Stage{
		movies:     movies,
		normalizer: normalizer,
		logger:     logging.NewComponentLogger(logger, "description"),
	}
}

// Execute composes and normalizes the description for item and leaves it in
// item.Description for the transition write.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	movie, err := stage.LoadMovie(ctx, s.movies, stageName, item)
	if err != nil {
		return err
	}
	text, err := s.normalizer.Normalize(Compose(movie))
	if err != nil {
		return err
	}
	item.Description = text
	if item.Title == "" {
		item.Title = movie.Title
	}
	logging.WithContext(ctx, s.logger).Debug("description prepared",
		logging.Int("description_runes", len([]rune(text))),
	)
	return nil
}

// HealthCheck reports ready; the stage has no external dependencies.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.movies == nil {
		return stage.Unhealthy(stageName, "movie source not configured")
	}
	return stage.Healthy(stageName)
}
