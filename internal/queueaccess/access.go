package queueaccess

import (
	"context"
	"errors"
	"fmt"

	"reelqueue/internal/queue"
)

// ListOptions filters and paginates List. Statuses accept either case
// (refresh_data or REFRESH_DATA).
type ListOptions struct {
	Statuses []string
	Page     int
	PerPage  int
}

// Detail is one item together with its stored catalog record, if any.
type Detail struct {
	Item  *queue.Item
	Movie *queue.Movie
}

// Access is the queue administration surface used by the CLI.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, opts ListOptions) (queue.Page, error)
	Describe(ctx context.Context, id int64) (*Detail, error)
	ForceStatus(ctx context.Context, status, message string, ids ...int64) (int64, error)
	Retry(ctx context.Context, ids ...int64) (int64, error)
	Sync(ctx context.Context) (int64, error)
	ResolveExternal(ctx context.Context, externalIDs []int64) (ids, missing []int64, err error)
	Health(ctx context.Context) (queue.HealthSummary, error)
	DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error)
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store}
}

type storeAccess struct {
	store *queue.Store
}

// ParseStatuses converts user input into statuses, rejecting unknown names.
func ParseStatuses(values []string) ([]queue.Status, error) {
	out := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("%w: %q", queue.ErrInvalidStatus, value)
		}
		out = append(out, status)
	}
	return out, nil
}

// Stats reports a count for every known status, zero included.
func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(stats))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out, nil
}

func (a *storeAccess) List(ctx context.Context, opts ListOptions) (queue.Page, error) {
	statuses, err := ParseStatuses(opts.Statuses)
	if err != nil {
		return queue.Page{}, err
	}
	return a.store.List(ctx, queue.ListOptions{Statuses: statuses, Page: opts.Page, PerPage: opts.PerPage})
}

// Describe returns nil without error when the item does not exist.
func (a *storeAccess) Describe(ctx context.Context, id int64) (*Detail, error) {
	item, err := a.store.GetByID(ctx, id)
	if errors.Is(err, queue.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	detail := &Detail{Item: item}
	movie, err := a.store.GetMovie(ctx, item.ExternalID)
	switch {
	case err == nil:
		detail.Movie = movie
	case !errors.Is(err, queue.ErrNotFound):
		return nil, err
	}
	return detail, nil
}

func (a *storeAccess) ForceStatus(ctx context.Context, status, message string, ids ...int64) (int64, error) {
	parsed, ok := queue.ParseStatus(status)
	if !ok {
		return 0, fmt.Errorf("%w: %q", queue.ErrInvalidStatus, status)
	}
	return a.store.ForceStatus(ctx, parsed, message, ids...)
}

func (a *storeAccess) Retry(ctx context.Context, ids ...int64) (int64, error) {
	return a.store.RetryFailed(ctx, ids...)
}

func (a *storeAccess) Sync(ctx context.Context) (int64, error) {
	return a.store.SyncMissing(ctx)
}

func (a *storeAccess) ResolveExternal(ctx context.Context, externalIDs []int64) ([]int64, []int64, error) {
	return a.store.ResolveExternalIDs(ctx, externalIDs)
}

func (a *storeAccess) Health(ctx context.Context) (queue.HealthSummary, error) {
	return a.store.Health(ctx)
}

func (a *storeAccess) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return a.store.CheckHealth(ctx)
}
