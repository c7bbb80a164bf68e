package refresh_test

import (
	"context"
	"errors"
	"testing"

	"reelqueue/internal/queue"
	"reelqueue/internal/refresh"
	"reelqueue/internal/services"
	"reelqueue/internal/testsupport"
)

type fakeFetcher struct {
	movies map[int64]*queue.Movie
	err    error
}

func (f fakeFetcher) GetMovieDetails(_ context.Context, id int64) (*queue.Movie, error) {
	if f.err != nil {
		return nil, f.err
	}
	if m, ok := f.movies[id]; ok {
		copy := *m
		return &copy, nil
	}
	return nil, services.Wrap(services.ErrNotFound, "tmdb", "details", "", nil)
}

func TestExecuteStoresMovieAndTitle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	fetcher := fakeFetcher{movies: map[int64]*queue.Movie{11: {TMDBID: 11, Title: "Star Wars", Overview: "Rebels."}}}
	stg := refresh.NewStage(fetcher, store, nil)
	ctx := context.Background()

	item := &queue.Item{ID: 1, ExternalID: 11}
	if err := stg.Execute(ctx, item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if item.Title != "Star Wars" {
		t.Fatalf("expected title set, got %q", item.Title)
	}
	stored, err := store.GetMovie(ctx, 11)
	if err != nil || stored.Overview != "Rebels." {
		t.Fatalf("unexpected stored movie %+v err=%v", stored, err)
	}

	if err := stg.Execute(ctx, &queue.Item{ID: 1, ExternalID: 11}); err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}
	changed, unchanged := stg.Counts()
	if changed != 1 || unchanged != 1 {
		t.Fatalf("expected one changed and one unchanged refresh, got %d/%d", changed, unchanged)
	}
}

func TestExecutePropagatesFetchErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stg := refresh.NewStage(fakeFetcher{}, store, nil)
	if err := stg.Execute(context.Background(), &queue.Item{ExternalID: 5}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExecuteRejectsMismatchedPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	fetcher := fakeFetcher{movies: map[int64]*queue.Movie{5: {TMDBID: 6, Title: "Wrong"}}}
	stg := refresh.NewStage(fetcher, store, nil)
	if err := stg.Execute(context.Background(), &queue.Item{ExternalID: 5}); !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
}
