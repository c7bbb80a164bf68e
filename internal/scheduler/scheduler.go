package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"reelqueue/internal/logging"
	"reelqueue/internal/metrics"
	"reelqueue/internal/services"
)

// ErrUnknownJob is returned by Trigger for a name that was never added.
var ErrUnknownJob = errors.New("unknown job")

// Job is a unit of periodic work.
type Job struct {
	Name       string
	Interval   time.Duration
	Run        func(ctx context.Context) error
	RunOnStart bool
	// Timeout bounds a single run. Zero means no bound beyond Stop.
	Timeout time.Duration
}

// JobStatus is a snapshot of one job's history.
type JobStatus struct {
	Name         string
	Interval     time.Duration
	Running      bool
	LastStart    time.Time
	LastDuration time.Duration
	LastError    string
	Runs         int64
	Failures     int64
	Skips        int64
}

type jobState struct {
	job     Job
	running atomic.Bool

	mu           sync.Mutex
	lastStart    time.Time
	lastDuration time.Duration
	lastErr      error
	runs         int64
	failures     int64
	skips        int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMetrics records job runs, durations and skipped ticks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock overrides the time source used for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler owns a set of jobs and their loops.
type Scheduler struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	jobs    map[string]*jobState
	order   []string
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	runs    sync.WaitGroup
}

// New creates an empty scheduler.
func New(logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: logging.NewComponentLogger(logger, "scheduler"),
		now:    time.Now,
		jobs:   make(map[string]*jobState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job. Jobs must be added before Start.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run function is required", job.Name)
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("job %s: scheduler already running", job.Name)
	}
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	s.jobs[job.Name] = &jobState{job: job}
	s.order = append(s.order, job.Name)
	return nil
}

// Start launches one loop per job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	if len(s.jobs) == 0 {
		s.mu.Unlock()
		return errors.New("scheduler has no jobs")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.ctx = runCtx
	s.cancel = cancel
	s.running = true
	states := make([]*jobState, 0, len(s.order))
	for _, name := range s.order {
		states = append(states, s.jobs[name])
	}
	s.loops.Add(len(states))
	s.mu.Unlock()

	for _, state := range states {
		go s.loop(runCtx, state)
	}
	s.logger.Info("scheduler started",
		logging.Int("jobs", len(states)),
		logging.String(logging.FieldEventType, "scheduler_started"),
	)
	return nil
}

// Stop cancels every loop and waits for in-flight runs. It is a no-op when
// the scheduler is not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.loops.Wait()
	s.runs.Wait()
	s.logger.Info("scheduler stopped", logging.String(logging.FieldEventType, "scheduler_stopped"))
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Trigger starts the named job now, subject to the same overlap rule as a
// tick. It reports whether a run was started.
func (s *Scheduler) Trigger(name string) (bool, error) {
	s.mu.RLock()
	state, ok := s.jobs[name]
	running := s.running
	ctx := s.ctx
	s.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !running {
		return false, errors.New("scheduler not running")
	}
	return s.launch(ctx, state), nil
}

func (s *Scheduler) loop(ctx context.Context, state *jobState) {
	defer s.loops.Done()
	if state.job.RunOnStart {
		s.launch(ctx, state)
	}
	ticker := time.NewTicker(state.job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.launch(ctx, state)
		}
	}
}

// launch starts a run unless one is already executing.
func (s *Scheduler) launch(ctx context.Context, state *jobState) bool {
	// The read lock orders runs.Add before Stop's Wait.
	s.mu.RLock()
	if !s.running || ctx.Err() != nil {
		s.mu.RUnlock()
		return false
	}
	if !state.running.CompareAndSwap(false, true) {
		s.mu.RUnlock()
		state.mu.Lock()
		state.skips++
		state.mu.Unlock()
		s.metrics.IncJobSkipped(state.job.Name)
		s.logger.Debug("job still running; tick skipped", logging.String(logging.FieldJob, state.job.Name))
		return false
	}
	s.runs.Add(1)
	s.mu.RUnlock()
	go func() {
		defer s.runs.Done()
		defer state.running.Store(false)
		s.execute(ctx, state)
	}()
	return true
}

func (s *Scheduler) execute(ctx context.Context, state *jobState) {
	job := state.job
	runCtx := services.WithJob(ctx, job.Name)
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, job.Timeout)
		defer cancel()
	}
	logger := logging.WithContext(runCtx, s.logger)

	start := s.now()
	state.mu.Lock()
	state.lastStart = start
	state.mu.Unlock()

	err := runSafely(runCtx, job.Run)
	duration := s.now().Sub(start)

	state.mu.Lock()
	state.runs++
	state.lastDuration = duration
	state.lastErr = err
	if err != nil {
		state.failures++
	}
	state.mu.Unlock()
	s.metrics.ObserveJob(job.Name, duration, err)

	switch {
	case err == nil:
		logger.Debug("job finished", logging.Duration("duration", duration))
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		logger.Info("job interrupted by shutdown", logging.Duration("duration", duration))
	default:
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.ErrorKind(err)),
			logging.Duration("duration", duration),
			logging.String(logging.FieldErrorHint, "the job runs again on its next tick"),
		)
	}
}

func runSafely(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v\n%s", r, debug.Stack())
		}
	}()
	return run(ctx)
}

// Status returns a snapshot of every job, in registration order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	states := make([]*jobState, 0, len(s.order))
	for _, name := range s.order {
		states = append(states, s.jobs[name])
	}
	s.mu.RUnlock()

	out := make([]JobStatus, 0, len(states))
	for _, state := range states {
		state.mu.Lock()
		status := JobStatus{
			Name:         state.job.Name,
			Interval:     state.job.Interval,
			Running:      state.running.Load(),
			LastStart:    state.lastStart,
			LastDuration: state.lastDuration,
			Runs:         state.runs,
			Failures:     state.failures,
			Skips:        state.skips,
		}
		if state.lastErr != nil {
			status.LastError = state.lastErr.Error()
		}
		state.mu.Unlock()
		out = append(out, status)
	}
	return out
}

