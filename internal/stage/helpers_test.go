package stage

import (
	"context"
	"errors"
	"testing"

	"reelqueue/internal/queue"
	"reelqueue/internal/services"
)

type fakeSource map[int64]*queue.Movie

func (f fakeSource) GetMovie(_ context.Context, id int64) (*queue.Movie, error) {
	if m, ok := f[id]; ok {
		return m, nil
	}
	return nil, queue.ErrNotFound
}

func TestLoadMovie_Found(t *testing.T) {
	src := fakeSource{7: {TMDBID: 7, Title: "Seven"}}
	movie, err := LoadMovie(context.Background(), src, "preprocess", &queue.Item{ExternalID: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if movie.Title != "Seven" {
		t.Fatalf("unexpected movie: %+v", movie)
	}
}

func TestLoadMovie_Missing(t *testing.T) {
	_, err := LoadMovie(context.Background(), fakeSource{}, "preprocess", &queue.Item{ExternalID: 8})
	if !errors.Is(err, services.ErrNotFound) || !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected not found markers, got %v", err)
	}
}

func TestLoadMovie_NilItem(t *testing.T) {
	if _, err := LoadMovie(context.Background(), fakeSource{}, "preprocess", nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
