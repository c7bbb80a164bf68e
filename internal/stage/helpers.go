package stage

import (
	"context"
	"errors"
	"fmt"

	"reelqueue/internal/queue"
	"reelqueue/internal/services"
)

// MovieSource loads stored catalog records.
type MovieSource interface {
	GetMovie(ctx context.Context, tmdbID int64) (*queue.Movie, error)
}

// LoadMovie fetches the catalog record behind item. A missing record becomes
// services.ErrNotFound so the runner logs it with the right error kind.
func LoadMovie(ctx context.Context, source MovieSource, stageName string, item *queue.Item) (*queue.Movie, error) {
	if item == nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "load movie", "item is nil", nil)
	}
	movie, err := source.GetMovie(ctx, item.ExternalID)
	if errors.Is(err, queue.ErrNotFound) {
		return nil, services.Wrap(services.ErrNotFound, stageName, "load movie",
			fmt.Sprintf("no movie record for tmdb id %d; rerun refresh", item.ExternalID), err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "load movie", "", err)
	}
	return movie, nil
}
