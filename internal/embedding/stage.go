package embedding

import (
	"context"
	"log/slog"
	"strings"

	"reelqueue/internal/logging"
	"reelqueue/internal/queue"
	"reelqueue/internal/services"
	"reelqueue/internal/stage"
)

const stageName = "embedding"

// Stage is the CREATE_EMBEDDING handler.
type Stage struct {
	movies   stage.MovieSource
	upserter Upserter
	index    *Index
	logger   *slog.Logger
}

// NewStage builds the embedding handler. index is optional and only used by
// HealthCheck.
func NewStage(movies stage.MovieSource, upserter Upserter, index *Index, logger *slog.Logger) *Stage {
	return &Stage{
		movies:   movies,
		upserter: upserter,
		index:    index,
		logger:   logging.NewComponentLogger(logger, "embedding"),
	}
}

// Execute embeds the preprocessed description of item.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	if strings.TrimSpace(item.Description) == "" {
		return services.Wrap(services.ErrValidation, stageName, "execute",
			"preprocessed description missing; force the item back to preprocess_description", nil)
	}
	movie, err := stage.LoadMovie(ctx, s.movies, stageName, item)
	if err != nil {
		return err
	}
	if err := s.upserter.UpsertEmbedding(ctx, item.ExternalID, item.Description, MetadataFor(movie)); err != nil {
		return err
	}
	logging.WithContext(ctx, s.logger).Debug("embedding stored",
		logging.Int64(logging.FieldExternalID, item.ExternalID),
	)
	return nil
}

// HealthCheck reports whether the vector index is reachable.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.upserter == nil {
		return stage.Unhealthy(stageName, "indexer not configured")
	}
	if s.index == nil {
		return stage.Healthy(stageName)
	}
	return stage.FromError(stageName, s.index.Ping(ctx))
}
