package queueaccess_test

import (
	"context"
	"errors"
	"testing"

	"reelqueue/internal/queue"
	"reelqueue/internal/queueaccess"
	"reelqueue/internal/testsupport"
)

func openSession(t *testing.T) (queueaccess.Session, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	session, err := queueaccess.OpenWith(func() (*queue.Store, error) { return store, nil })
	if err != nil {
		t.Fatalf("OpenWith: %v", err)
	}
	return session, store
}

func TestStatsIncludesEveryStatus(t *testing.T) {
	session, store := openSession(t)
	testsupport.NewItem(t, store, 1, "One")
	stats, err := session.Access.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != len(queue.AllStatuses()) {
		t.Fatalf("expected every status in stats, got %v", stats)
	}
	if stats["refresh_data"] != 1 || stats["failed"] != 0 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestListFiltersByLabel(t *testing.T) {
	session, store := openSession(t)
	ctx := context.Background()
	a := testsupport.NewItem(t, store, 1, "One")
	testsupport.NewItem(t, store, 2, "Two")
	if _, err := store.ForceStatus(ctx, queue.StatusFailed, "broken", a.ID); err != nil {
		t.Fatalf("ForceStatus: %v", err)
	}
	page, err := session.Access.List(ctx, queueaccess.ListOptions{Statuses: []string{"FAILED"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != a.ID || page.Items[0].Message != "broken" {
		t.Fatalf("unexpected page %+v", page)
	}
	if _, err := session.Access.List(ctx, queueaccess.ListOptions{Statuses: []string{"nope"}}); !errors.Is(err, queue.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestForceStatusRetryAndSync(t *testing.T) {
	session, store := openSession(t)
	ctx := context.Background()
	item := testsupport.NewItem(t, store, 10, "Ten")

	if n, err := session.Access.ForceStatus(ctx, "FAILED", "manual", item.ID); err != nil || n != 1 {
		t.Fatalf("ForceStatus = %d, %v", n, err)
	}
	if n, err := session.Access.Retry(ctx); err != nil || n != 1 {
		t.Fatalf("Retry = %d, %v", n, err)
	}
	got := testsupport.MustGet(t, store, item.ID)
	if got.Status != queue.StatusRefreshData || got.Retries != 0 || got.Message != "" {
		t.Fatalf("unexpected item after retry %+v", got)
	}
	if _, err := session.Access.ForceStatus(ctx, "bogus", ""); !errors.Is(err, queue.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	if _, err := store.SaveMovie(ctx, &queue.Movie{TMDBID: 77, Title: "Orphan"}); err != nil {
		t.Fatalf("SaveMovie: %v", err)
	}
	if n, err := session.Access.Sync(ctx); err != nil || n != 1 {
		t.Fatalf("Sync = %d, %v", n, err)
	}
	ids, missing, err := session.Access.ResolveExternal(ctx, []int64{77, 404})
	if err != nil {
		t.Fatalf("ResolveExternal: %v", err)
	}
	if len(ids) != 1 || len(missing) != 1 || missing[0] != 404 {
		t.Fatalf("unexpected resolution %v %v", ids, missing)
	}
}

func TestDescribe(t *testing.T) {
	session, store := openSession(t)
	ctx := context.Background()
	item := testsupport.NewItem(t, store, 5, "Five")

	detail, err := session.Access.Describe(ctx, item.ID)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if detail == nil || detail.Movie != nil {
		t.Fatalf("expected item without movie, got %+v", detail)
	}
	if _, err := store.SaveMovie(ctx, &queue.Movie{TMDBID: 5, Title: "Five", Genres: []string{"Drama"}}); err != nil {
		t.Fatalf("SaveMovie: %v", err)
	}
	detail, err = session.Access.Describe(ctx, item.ID)
	if err != nil || detail.Movie == nil || detail.Movie.Genres[0] != "Drama" {
		t.Fatalf("unexpected detail %+v, %v", detail, err)
	}
	if detail, err := session.Access.Describe(ctx, 9999); err != nil || detail != nil {
		t.Fatalf("expected nil detail for missing item, got %+v, %v", detail, err)
	}
}

func TestHealth(t *testing.T) {
	session, store := openSession(t)
	testsupport.NewItem(t, store, 1, "One")
	summary, err := session.Access.Health(context.Background())
	if err != nil || summary.Total != 1 || summary.Pending != 1 {
		t.Fatalf("unexpected health %+v, %v", summary, err)
	}
	db, err := session.Access.DatabaseHealth(context.Background())
	if err != nil || !db.IntegrityCheck || db.TotalItems != 1 {
		t.Fatalf("unexpected database health %+v, %v", db, err)
	}
}
