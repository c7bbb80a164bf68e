package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"reelqueue/internal/config"
	"reelqueue/internal/description"
	"reelqueue/internal/discovery"
	"reelqueue/internal/embedding"
	"reelqueue/internal/logging"
	"reelqueue/internal/metrics"
	"reelqueue/internal/queue"
	"reelqueue/internal/refresh"
	"reelqueue/internal/scheduler"
	"reelqueue/internal/stage"
	"reelqueue/internal/stageexec"
)

// Job names registered with the scheduler.
const (
	JobDiscovery  = "discovery"
	JobRefresh    = "refresh"
	JobPreprocess = "preprocess"
	JobEmbedding  = "embedding"
)

// Catalog is the TMDB surface used by both refresh and discovery.
type Catalog interface {
	refresh.Fetcher
	discovery.Catalog
}

// Collaborators are the external services the stages call.
type Collaborators struct {
	Catalog  Catalog
	Upserter embedding.Upserter
	// Index is optional and only consulted for health checks.
	Index *embedding.Index
}

// Manager coordinates the stage runners and the scheduler.
type Manager struct {
	cfg        *config.Config
	store      *queue.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
	runOnStart bool

	runners    []*stageexec.Runner
	refresher  *refresh.Stage
	discoverer *discovery.Discoverer
	scheduler  *scheduler.Scheduler
	jobs       []scheduler.Job

	mu      sync.RWMutex
	lastErr error
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithMetrics records stage, job and queue metrics.
func WithMetrics(m *metrics.Metrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithRunOnStart makes every job run once as soon as Start is called.
func WithRunOnStart(enabled bool) ManagerOption {
	return func(mgr *Manager) { mgr.runOnStart = enabled }
}

// NewManager builds the runners and jobs described by cfg.
func NewManager(cfg *config.Config, store *queue.Store, collab Collaborators, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("workflow requires a config and a queue store")
	}
	if collab.Catalog == nil {
		return nil, errors.New("workflow requires a catalog")
	}
	if collab.Upserter == nil {
		return nil, errors.New("workflow requires an embedding upserter")
	}
	m := &Manager{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "workflow"),
	}
	for _, opt := range opts {
		opt(m)
	}

	pipeline := cfg.Pipeline
	m.refresher = refresh.NewStage(collab.Catalog, store, logger)
	stages := []struct {
		name    string
		input   queue.Status
		handler stage.Handler
		sched   config.StageSchedule
	}{
		{JobRefresh, queue.StatusRefreshData, m.refresher, pipeline.Refresh},
		{JobPreprocess, queue.StatusPreprocessDescription,
			description.NewStage(store, description.NewNormalizer(cfg.Description.MaxRunes), logger), pipeline.Preprocess},
		{JobEmbedding, queue.StatusCreateEmbedding, embedding.NewStage(store, collab.Upserter, collab.Index, logger), pipeline.Embedding},
	}

	if cfg.Discovery.Enabled {
		d, err := discovery.NewFromConfig(cfg, collab.Catalog, store, logger)
		if err != nil {
			return nil, err
		}
		m.discoverer = d
		m.jobs = append(m.jobs, scheduler.Job{
			Name:       JobDiscovery,
			Interval:   time.Duration(cfg.Discovery.IntervalSeconds) * time.Second,
			Run:        m.runDiscovery,
			RunOnStart: m.runOnStart,
		})
	}
	for _, def := range stages {
		runner, err := stageexec.New(stageexec.Options{
			Logger:      logger,
			Store:       store,
			Handler:     def.handler,
			Metrics:     m.metrics,
			StageName:   def.name,
			Input:       def.input,
			BatchSize:   def.sched.BatchSize,
			Parallelism: def.sched.Parallelism,
			ItemTimeout: pipeline.ItemTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("build %s runner: %w", def.name, err)
		}
		m.runners = append(m.runners, runner)
		m.jobs = append(m.jobs, scheduler.Job{
			Name:       def.name,
			Interval:   def.sched.Interval(),
			Run:        m.stageJob(runner),
			RunOnStart: m.runOnStart,
		})
	}

	m.scheduler = scheduler.New(logger, scheduler.WithMetrics(m.metrics))
	for _, job := range m.jobs {
		if err := m.scheduler.Add(job); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) runDiscovery(ctx context.Context) error {
	_, err := m.discoverer.Run(ctx)
	m.afterJob(ctx, err)
	return err
}

func (m *Manager) stageJob(runner *stageexec.Runner) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := runner.Drain(ctx, m.cfg.Pipeline.MaxBatchesPerRun)
		m.afterJob(ctx, err)
		return err
	}
}

// afterJob records the job outcome and refreshes the queue gauge.
func (m *Manager) afterJob(ctx context.Context, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		m.setLastError(err)
	}
	if m.metrics == nil {
		return
	}
	stats, statsErr := m.store.Stats(context.WithoutCancel(ctx))
	if statsErr != nil {
		m.logger.Warn("queue stats unavailable after job", logging.Error(statsErr))
		return
	}
	counts := make(map[string]int, len(stats))
	for _, status := range queue.AllStatuses() {
		counts[string(status)] = stats[status]
	}
	m.metrics.SetQueueCounts(counts)
}

// Start begins scheduled processing.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	return nil
}

// Stop terminates scheduled processing and waits for in-flight jobs.
func (m *Manager) Stop() {
	m.scheduler.Stop()
}

// Trigger runs the named job now unless it is already running.
func (m *Manager) Trigger(name string) (bool, error) {
	return m.scheduler.Trigger(name)
}

// RefreshCounts reports how many refreshes changed the stored catalog record
// and how many found it unchanged since the manager was built.
func (m *Manager) RefreshCounts() (changed, unchanged int64) {
	return m.refresher.Counts()
}

// JobNames lists the registered jobs in pipeline order.
func (m *Manager) JobNames() []string {
	names := make([]string, 0, len(m.jobs))
	for _, job := range m.jobs {
		names = append(names, job.Name)
	}
	return names
}

// RunOnce runs every job a single time in pipeline order. A failing job does
// not stop the ones after it; all errors are returned together.
func (m *Manager) RunOnce(ctx context.Context) error {
	var result *multierror.Error
	for _, job := range m.jobs {
		if err := ctx.Err(); err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}
		start := time.Now()
		err := job.Run(ctx)
		m.metrics.ObserveJob(job.Name, time.Since(start), err)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return result.ErrorOrNil()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
