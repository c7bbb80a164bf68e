package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reelqueue/internal/queue"
	"reelqueue/internal/testsupport"
)

func TestUpsertIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, created, err := store.Upsert(ctx, 603, "The Matrix")
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if !created || first.Status != queue.StatusRefreshData || first.Retries != 0 {
		t.Fatalf("unexpected first upsert: created=%v item=%+v", created, first)
	}

	second, created, err := store.Upsert(ctx, 603, "Other Title")
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if created {
		t.Fatal("expected second upsert to report existing row")
	}
	if second.ID != first.ID || second.Title != "The Matrix" {
		t.Fatalf("expected existing row untouched, got %+v", second)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusRefreshData] != 1 {
		t.Fatalf("expected exactly one item, got %v", stats)
	}
}

func TestUpsertRejectsNonPositiveID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if _, _, err := store.Upsert(context.Background(), 0, ""); err == nil {
		t.Fatal("expected error for zero external id")
	}
}

func TestClaimBatchOrdersOldestFirstAndLeases(t *testing.T) {
	clock := testsupport.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now))
	ctx := context.Background()

	for _, ext := range []int64{30, 10, 20} {
		testsupport.NewItem(t, store, ext, "")
		clock.Advance(time.Second)
	}

	items, err := store.ClaimBatch(ctx, queue.StatusRefreshData, 2)
	if err != nil {
		t.Fatalf("ClaimBatch failed: %v", err)
	}
	if len(items) != 2 || items[0].ExternalID != 30 || items[1].ExternalID != 10 {
		t.Fatalf("expected oldest two (30, 10), got %+v", items)
	}
	if items[0].ClaimToken == "" || items[0].ClaimedUntil == nil {
		t.Fatal("expected lease to be stamped")
	}

	rest, err := store.ClaimBatch(ctx, queue.StatusRefreshData, 10)
	if err != nil {
		t.Fatalf("ClaimBatch failed: %v", err)
	}
	if len(rest) != 1 || rest[0].ExternalID != 20 {
		t.Fatalf("expected only the unleased item, got %+v", rest)
	}

	clock.Advance(cfg.Pipeline.ClaimLease() + time.Second)
	expired, err := store.ClaimBatch(ctx, queue.StatusRefreshData, 10)
	if err != nil {
		t.Fatalf("ClaimBatch failed: %v", err)
	}
	if len(expired) != 3 {
		t.Fatalf("expected all items reclaimable after lease expiry, got %d", len(expired))
	}
}

func TestClaimDoesNotTouchUpdatedAt(t *testing.T) {
	clock := testsupport.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now))
	item := testsupport.NewItem(t, store, 1, "")
	clock.Advance(time.Minute)

	claimed, err := store.ClaimBatch(context.Background(), queue.StatusRefreshData, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimBatch failed: %v (%d)", err, len(claimed))
	}
	if !claimed[0].UpdatedAt.Equal(item.UpdatedAt) {
		t.Fatalf("claim changed updated_at: %v -> %v", item.UpdatedAt, claimed[0].UpdatedAt)
	}
}

func TestTransitionResetsRetriesAndMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewItem(t, store, 42, "")

	claimed, _ := store.ClaimBatch(ctx, queue.StatusRefreshData, 1)
	failed, err := store.RecordFailure(ctx, claimed[0], "tmdb timeout")
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if failed.Retries != 1 || failed.Status != queue.StatusRefreshData || failed.Message != "tmdb timeout" {
		t.Fatalf("unexpected soft failure state %+v", failed)
	}

	claimed, _ = store.ClaimBatch(ctx, queue.StatusRefreshData, 1)
	if len(claimed) != 1 || claimed[0].Retries != 1 {
		t.Fatalf("expected soft-failed item to be reclaimed with retries=1, got %+v", claimed)
	}
	item := claimed[0]
	item.Title = "Fetched Title"
	if err := store.Transition(ctx, item, queue.StatusPreprocessDescription); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	stored := testsupport.MustGet(t, store, item.ID)
	if stored.Status != queue.StatusPreprocessDescription || stored.Retries != 0 || stored.Message != "" {
		t.Fatalf("expected reset row after transition, got %+v", stored)
	}
	if stored.Title != "Fetched Title" || stored.ClaimToken != "" {
		t.Fatalf("expected title stored and lease cleared, got %+v", stored)
	}
}

func TestTransitionRejectsInvalidEdges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewItem(t, store, 7, "")
	claimed, _ := store.ClaimBatch(ctx, queue.StatusRefreshData, 1)

	for _, to := range []queue.Status{queue.StatusCreateEmbedding, queue.StatusCompleted, queue.StatusRefreshData} {
		if err := store.Transition(ctx, claimed[0], to); !errors.Is(err, queue.ErrInvalidTransition) {
			t.Fatalf("transition to %s: expected ErrInvalidTransition, got %v", to, err)
		}
	}
}

func TestTransitionAfterLeaseTakeoverIsRejected(t *testing.T) {
	clock := testsupport.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now))
	ctx := context.Background()
	testsupport.NewItem(t, store, 8, "")

	stale, _ := store.ClaimBatch(ctx, queue.StatusRefreshData, 1)
	clock.Advance(cfg.Pipeline.ClaimLease() + time.Second)
	fresh, _ := store.ClaimBatch(ctx, queue.StatusRefreshData, 1)
	if len(fresh) != 1 {
		t.Fatalf("expected takeover claim")
	}

	if err := store.Transition(ctx, stale[0], queue.StatusPreprocessDescription); !errors.Is(err, queue.ErrClaimLost) {
		t.Fatalf("expected ErrClaimLost for stale claim, got %v", err)
	}
	if _, err := store.RecordFailure(ctx, stale[0], "late"); !errors.Is(err, queue.ErrClaimLost) {
		t.Fatalf("expected ErrClaimLost for stale failure, got %v", err)
	}
	if err := store.Transition(ctx, fresh[0], queue.StatusPreprocessDescription); err != nil {
		t.Fatalf("fresh claim transition failed: %v", err)
	}
}

func TestRecordFailureMaxRetriesBoundary(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(3))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewItem(t, store, 99, "")

	var last *queue.Item
	for attempt := 1; attempt <= 3; attempt++ {
		claimed, err := store.ClaimBatch(ctx, queue.StatusRefreshData, 1)
		if err != nil || len(claimed) != 1 {
			t.Fatalf("attempt %d: claim failed: %v (%d)", attempt, err, len(claimed))
		}
		if last != nil && claimed[0].Retries != last.Retries {
			t.Fatalf("attempt %d: retries changed outside RecordFailure", attempt)
		}
		last, err = store.RecordFailure(ctx, claimed[0], "boom")
		if err != nil {
			t.Fatalf("attempt %d: RecordFailure failed: %v", attempt, err)
		}
		if last.Retries != attempt {
			t.Fatalf("attempt %d: retries=%d", attempt, last.Retries)
		}
		wantStatus := queue.StatusRefreshData
		if attempt == 3 {
			wantStatus = queue.StatusFailed
		}
		if last.Status != wantStatus {
			t.Fatalf("attempt %d: status=%s want %s", attempt, last.Status, wantStatus)
		}
	}

	for _, status := range []queue.Status{queue.StatusRefreshData, queue.StatusPreprocessDescription, queue.StatusCreateEmbedding} {
		claimed, err := store.ClaimBatch(ctx, status, 10)
		if err != nil {
			t.Fatalf("ClaimBatch(%s) failed: %v", status, err)
		}
		if len(claimed) != 0 {
			t.Fatalf("FAILED item must never be claimed, got %+v", claimed)
		}
	}
	if _, err := store.ClaimBatch(ctx, queue.StatusFailed, 10); err == nil {
		t.Fatal("expected claiming a terminal status to be rejected")
	}
}

func TestForceStatusMakesItemEligible(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(1))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	item := testsupport.NewItem(t, store, 5, "")
	testsupport.NewItem(t, store, 6, "")

	claimed, _ := store.ClaimBatch(ctx, queue.StatusRefreshData, 1)
	if _, err := store.RecordFailure(ctx, claimed[0], "permanent"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if got := testsupport.MustGet(t, store, item.ID); got.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}

	n, err := store.ForceStatus(ctx, queue.StatusPreprocessDescription, "", item.ID)
	if err != nil || n != 1 {
		t.Fatalf("ForceStatus failed: n=%d err=%v", n, err)
	}
	got := testsupport.MustGet(t, store, item.ID)
	if got.Retries != 0 || got.Message != "" || got.ClaimToken != "" {
		t.Fatalf("expected reset row, got %+v", got)
	}
	next, err := store.ClaimBatch(ctx, queue.StatusPreprocessDescription, 10)
	if err != nil || len(next) != 1 || next[0].ID != item.ID {
		t.Fatalf("expected forced item to be claimable, got %+v err=%v", next, err)
	}

	all, err := store.ForceStatus(ctx, queue.StatusRefreshData, "reset by operator")
	if err != nil || all != 2 {
		t.Fatalf("ForceStatus all: n=%d err=%v", all, err)
	}
	if got := testsupport.MustGet(t, store, item.ID); got.Message != "reset by operator" || got.ClaimToken != "" {
		t.Fatalf("expected message set and lease cleared, got %+v", got)
	}
	if _, err := store.ForceStatus(ctx, queue.Status("bogus"), ""); !errors.Is(err, queue.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestRetryFailedOnlyTouchesFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(1))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	failed := testsupport.NewItem(t, store, 1, "")
	other := testsupport.NewItem(t, store, 2, "")

	claimed, _ := store.ClaimBatch(ctx, queue.StatusRefreshData, 1)
	if _, err := store.RecordFailure(ctx, claimed[0], "x"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	n, err := store.RetryFailed(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RetryFailed: n=%d err=%v", n, err)
	}
	if got := testsupport.MustGet(t, store, failed.ID); got.Status != queue.StatusRefreshData || got.Retries != 0 {
		t.Fatalf("unexpected retried item %+v", got)
	}
	if got := testsupport.MustGet(t, store, other.ID); got.Status != queue.StatusRefreshData {
		t.Fatalf("unexpected untouched item %+v", got)
	}
}

func TestConcurrentClaimsAreExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	storeA := testsupport.MustOpenStore(t, cfg)
	storeB := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	const total = 200
	for i := 1; i <= total; i++ {
		if _, _, err := storeA.Upsert(ctx, int64(i), ""); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	var (
		mu   sync.Mutex
		seen = make(map[int64]int)
		wg   sync.WaitGroup
		errs = make(chan error, 2)
	)
	for _, store := range []*queue.Store{storeA, storeB} {
		wg.Add(1)
		go func(store *queue.Store) {
			defer wg.Done()
			for {
				items, err := store.ClaimBatch(ctx, queue.StatusRefreshData, 7)
				if err != nil {
					errs <- err
					return
				}
				if len(items) == 0 {
					return
				}
				mu.Lock()
				for _, item := range items {
					seen[item.ID]++
				}
				mu.Unlock()
			}
		}(store)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent claim failed: %v", err)
	}

	if len(seen) != total {
		t.Fatalf("expected %d distinct items claimed, got %d", total, len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("item %d claimed %d times", id, count)
		}
	}
}

func TestReleaseReturnsItemsToPool(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewItem(t, store, 1, "")

	claimed, _ := store.ClaimBatch(ctx, queue.StatusRefreshData, 1)
	if err := store.Release(ctx, claimed...); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	again, _ := store.ClaimBatch(ctx, queue.StatusRefreshData, 1)
	if len(again) != 1 || again[0].Retries != 0 {
		t.Fatalf("expected released item to be claimable without spending a retry, got %+v", again)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	clock := testsupport.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now))
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		testsupport.NewItem(t, store, i, "")
		clock.Advance(time.Second)
	}
	if _, err := store.ForceStatus(ctx, queue.StatusCompleted, "", 1, 2); err != nil {
		t.Fatalf("ForceStatus failed: %v", err)
	}

	page, err := store.List(ctx, queue.ListOptions{Statuses: []queue.Status{queue.StatusRefreshData}, Page: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.Pages() != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Items[0].ExternalID != 5 {
		t.Fatalf("expected newest first, got %d", page.Items[0].ExternalID)
	}

	second, err := store.List(ctx, queue.ListOptions{Statuses: []queue.Status{queue.StatusRefreshData}, Page: 2, PerPage: 2})
	if err != nil || len(second.Items) != 1 || second.Items[0].ExternalID != 3 {
		t.Fatalf("unexpected second page %+v err=%v", second, err)
	}

	all, err := store.List(ctx, queue.ListOptions{})
	if err != nil || all.Total != 5 {
		t.Fatalf("unexpected unfiltered list %+v err=%v", all, err)
	}
}

func TestSaveMovieReportsChanges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	movie := &queue.Movie{TMDBID: 603, Title: "The Matrix", Overview: "A hacker.", Genres: []string{"Action", "Science Fiction"}, Runtime: 136}
	changed, err := store.SaveMovie(ctx, movie)
	if err != nil || !changed {
		t.Fatalf("first save: changed=%v err=%v", changed, err)
	}

	changed, err = store.SaveMovie(ctx, &queue.Movie{TMDBID: 603, Title: "The Matrix", Genres: []string{"Action", "Science Fiction"}})
	if err != nil || changed {
		t.Fatalf("identical or empty fields should not change: changed=%v err=%v", changed, err)
	}

	changed, err = store.SaveMovie(ctx, &queue.Movie{TMDBID: 603, Tagline: "Welcome to the Real World"})
	if err != nil || !changed {
		t.Fatalf("new tagline should change: changed=%v err=%v", changed, err)
	}

	stored, err := store.GetMovie(ctx, 603)
	if err != nil {
		t.Fatalf("GetMovie failed: %v", err)
	}
	if stored.Overview != "A hacker." || stored.Tagline != "Welcome to the Real World" || stored.Runtime != 136 {
		t.Fatalf("unexpected merged movie %+v", stored)
	}
	if len(stored.Genres) != 2 || stored.Genres[1] != "Science Fiction" {
		t.Fatalf("unexpected genres %v", stored.Genres)
	}
	if _, err := store.GetMovie(ctx, 1); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncMissingQueuesOrphanMovies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		if _, err := store.SaveMovie(ctx, &queue.Movie{TMDBID: id, Title: "m"}); err != nil {
			t.Fatalf("SaveMovie failed: %v", err)
		}
	}
	testsupport.NewItem(t, store, 2, "")

	n, err := store.SyncMissing(ctx)
	if err != nil || n != 2 {
		t.Fatalf("SyncMissing: n=%d err=%v", n, err)
	}
	n, err = store.SyncMissing(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second SyncMissing should be a no-op: n=%d err=%v", n, err)
	}
}

func TestAddDiscoveredStoresMovieAndItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created, err := store.AddDiscovered(ctx, &queue.Movie{TMDBID: 77, Title: "Found"})
	if err != nil || !created {
		t.Fatalf("AddDiscovered: created=%v err=%v", created, err)
	}
	item, err := store.GetByExternalID(ctx, 77)
	if err != nil || item.Status != queue.StatusRefreshData || item.Title != "Found" {
		t.Fatalf("unexpected item %+v err=%v", item, err)
	}
	existing, err := store.ExistingExternalIDs(ctx, []int64{77, 78})
	if err != nil {
		t.Fatalf("ExistingExternalIDs failed: %v", err)
	}
	if _, ok := existing[77]; !ok || len(existing) != 1 {
		t.Fatalf("unexpected existing set %v", existing)
	}
}

func TestImportCursorLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.LatestCursor(ctx); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected no cursor, got %v", err)
	}
	cursor, err := store.ResetCursor(ctx, "https://example/a.gz", "/tmp/a.jsonl")
	if err != nil {
		t.Fatalf("ResetCursor failed: %v", err)
	}
	if _, err := store.ResetCursor(ctx, "https://example/b.gz", "/tmp/b.jsonl"); err != nil {
		t.Fatalf("ResetCursor b failed: %v", err)
	}

	cursor.LineNumber = 2
	cursor.ByteOffset = 40
	cursor.LastExternalID = 11
	created, err := store.CommitImportBatch(ctx, []queue.ImportEntry{{ExternalID: 10}, {ExternalID: 11}}, cursor)
	if err != nil || created != 2 {
		t.Fatalf("CommitImportBatch: created=%d err=%v", created, err)
	}
	if cursor.Imported != 2 {
		t.Fatalf("expected imported counter advanced, got %d", cursor.Imported)
	}

	latest, err := store.LatestCursor(ctx)
	if err != nil {
		t.Fatalf("LatestCursor failed: %v", err)
	}
	if latest.SourceURL != "https://example/a.gz" || latest.ByteOffset != 40 || latest.Imported != 2 {
		t.Fatalf("unexpected latest cursor %+v", latest)
	}

	reset, err := store.ResetCursor(ctx, "https://example/a.gz", "/tmp/a2.jsonl")
	if err != nil || reset.LineNumber != 0 || reset.Imported != 0 || reset.LocalPath != "/tmp/a2.jsonl" {
		t.Fatalf("unexpected reset cursor %+v err=%v", reset, err)
	}
	if other, err := store.LoadCursor(ctx, "https://example/b.gz"); err != nil || other.LocalPath != "/tmp/b.jsonl" {
		t.Fatalf("other cursor should be untouched: %+v err=%v", other, err)
	}
}

func TestCheckHealthReportsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewItem(t, store, 1, "")

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.TableExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health %+v", health)
	}
	if len(health.MissingColumns) != 0 || health.TotalItems != 1 {
		t.Fatalf("unexpected columns/items %+v", health)
	}
	if health.SchemaVersion != queue.SchemaVersion() {
		t.Fatalf("schema version = %q", health.SchemaVersion)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	testsupport.NewItem(t, store, 1, "kept")
	store.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	item, err := reopened.GetByExternalID(context.Background(), 1)
	if err != nil || item.Title != "kept" {
		t.Fatalf("expected data after reopen, got %+v err=%v", item, err)
	}
}

func TestClaimBatchSkipsExcludedIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	first := testsupport.NewItem(t, store, 1, "")
	second := testsupport.NewItem(t, store, 2, "")
	third := testsupport.NewItem(t, store, 3, "")

	claimed, err := store.ClaimBatch(ctx, queue.StatusRefreshData, 10, first.ID, third.ID)
	if err != nil {
		t.Fatalf("ClaimBatch failed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != second.ID {
		t.Fatalf("expected only item %d, got %+v", second.ID, claimed)
	}
	rest, err := store.ClaimBatch(ctx, queue.StatusRefreshData, 10)
	if err != nil {
		t.Fatalf("ClaimBatch failed: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("excluded items should stay claimable, got %d", len(rest))
	}
}

func TestItemClaimedTracksLease(t *testing.T) {
	clock := testsupport.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now))
	item := testsupport.NewItem(t, store, 1, "")
	if item.Claimed(clock.Now()) {
		t.Fatal("fresh item should not be claimed")
	}
	claimed, err := store.ClaimBatch(context.Background(), queue.StatusRefreshData, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimBatch failed: %v (%d)", err, len(claimed))
	}
	if !claimed[0].Claimed(clock.Now()) {
		t.Fatalf("expected live lease, got %+v", claimed[0])
	}
	if claimed[0].Claimed(clock.Now().Add(cfg.Pipeline.ClaimLease() + time.Second)) {
		t.Fatal("lease should expire after claim_lease_seconds")
	}
}
