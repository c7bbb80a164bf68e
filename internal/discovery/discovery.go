// Package discovery finds new movies in the TMDB listings and queues the
// ones that pass the acceptability policy.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"reelqueue/internal/config"
	"reelqueue/internal/logging"
	"reelqueue/internal/queue"
)

// Catalog is the listing and details surface discovery reads from.
type Catalog interface {
	NowPlayingIDs(ctx context.Context, page int) ([]int64, error)
	TopRatedIDs(ctx context.Context, page int) ([]int64, error)
	PopularIDs(ctx context.Context, page int) ([]int64, error)
	GetMovieDetails(ctx context.Context, tmdbID int64) (*queue.Movie, error)
}

// Store is the queue surface discovery writes to.
type Store interface {
	ExistingExternalIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
	AddDiscovered(ctx context.Context, movie *queue.Movie) (bool, error)
}

// Options configures a Discoverer.
type Options struct {
	Pages       int
	RejectedTTL time.Duration
	Policy      Policy
	Logger      *slog.Logger
}

// Result summarizes one discovery pass.
type Result struct {
	Pages      int
	PageErrors int
	Listed     int
	Candidates int
	Queued     int
	Rejected   int
	Failed     int
}

// Discoverer runs discovery passes. Rejections are remembered for
// RejectedTTL so stable listings do not refetch the same details each pass.
type Discoverer struct {
	catalog  Catalog
	store    Store
	policy   Policy
	pages    int
	rejected *ttlcache.Cache[int64, string]
	logger   *slog.Logger
}

// New builds a Discoverer.
func New(catalog Catalog, store Store, opts Options) (*Discoverer, error) {
	if catalog == nil || store == nil {
		return nil, errors.New("discovery requires a catalog and a store")
	}
	pages := opts.Pages
	if pages <= 0 {
		pages = 1
	}
	policy := opts.Policy
	if policy.allowed == nil {
		policy = NewPolicy(nil)
	}
	d := &Discoverer{
		catalog: catalog,
		store:   store,
		policy:  policy,
		pages:   pages,
		logger:  logging.NewComponentLogger(opts.Logger, "discovery"),
	}
	if opts.RejectedTTL > 0 {
		d.rejected = ttlcache.New(
			ttlcache.WithTTL[int64, string](opts.RejectedTTL),
			ttlcache.WithDisableTouchOnHit[int64, string](),
		)
	}
	return d, nil
}

// Run executes one discovery pass over pages 1..Pages. Listing failures skip
// the page, detail failures skip the id, and store failures abort the pass.
func (d *Discoverer) Run(ctx context.Context) (Result, error) {
	var result Result
	if d.rejected != nil {
		d.rejected.DeleteExpired()
	}
	for page := 1; page <= d.pages; page++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Pages++
		ids, err := d.listPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.PageErrors++
			logging.WarnWithContext(d.logger, "discovery page listing failed", "discovery_page_failed",
				logging.Int("page", page),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check tmdb.api_key and network access"),
				logging.String(logging.FieldImpact, "page skipped for this pass"),
			)
			continue
		}
		result.Listed += len(ids)
		if err := d.processPage(ctx, page, ids, &result); err != nil {
			return result, err
		}
	}
	d.logger.Info("discovery pass finished",
		logging.String(logging.FieldEventType, "discovery_complete"),
		logging.Int("pages", result.Pages),
		logging.Int("listed", result.Listed),
		logging.Int("candidates", result.Candidates),
		logging.Int("queued", result.Queued),
		logging.Int("rejected", result.Rejected),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func (d *Discoverer) listPage(ctx context.Context, page int) ([]int64, error) {
	seen := make(map[int64]struct{})
	listings := []struct {
		name string
		list func(context.Context, int) ([]int64, error)
	}{
		{"now_playing", d.catalog.NowPlayingIDs},
		{"top_rated", d.catalog.TopRatedIDs},
		{"popular", d.catalog.PopularIDs},
	}
	for _, l := range listings {
		ids, err := l.list(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", l.name, page, err)
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (d *Discoverer) processPage(ctx context.Context, page int, ids []int64, result *Result) error {
	existing, err := d.store.ExistingExternalIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("lookup queued ids: %w", err)
	}
	logger := d.logger.With(logging.Int("page", page))
	for _, id := range ids {
		if _, ok := existing[id]; ok {
			continue
		}
		if d.rejected != nil && d.rejected.Get(id) != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Candidates++
		movie, err := d.catalog.GetMovieDetails(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result.Failed++
			logger.Warn("discovery details fetch failed",
				logging.Int64(logging.FieldExternalID, id),
				logging.Error(err),
				logging.String(logging.FieldEventType, "discovery_details_failed"),
			)
			continue
		}
		if ok, reason := d.policy.Evaluate(movie); !ok {
			result.Rejected++
			if d.rejected != nil {
				d.rejected.Set(id, reason, ttlcache.DefaultTTL)
			}
			logger.Debug("discovered movie rejected",
				logging.Int64(logging.FieldExternalID, id),
				logging.String("reason", reason),
			)
			continue
		}
		created, err := d.store.AddDiscovered(ctx, movie)
		if err != nil {
			return fmt.Errorf("queue discovered movie %d: %w", id, err)
		}
		if created {
			result.Queued++
		}
	}
	return nil
}

// NewFromConfig builds a Discoverer using the discovery section of cfg.
func NewFromConfig(cfg *config.Config, catalog Catalog, store Store, logger *slog.Logger) (*Discoverer, error) {
	if cfg == nil {
		return nil, errors.New("discovery requires a config")
	}
	return New(catalog, store, Options{
		Pages:       cfg.Discovery.Pages,
		RejectedTTL: time.Duration(cfg.Discovery.RejectedTTLHours) * time.Hour,
		Policy:      NewPolicy(cfg.Discovery.AllowedLanguages),
		Logger:      logger,
	})
}
