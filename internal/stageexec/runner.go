package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"reelqueue/internal/logging"
	"reelqueue/internal/metrics"
	"reelqueue/internal/queue"
	"reelqueue/internal/services"
	"reelqueue/internal/stage"
)

// Store is the queue surface a runner needs.
type Store interface {
	ClaimBatch(ctx context.Context, status queue.Status, limit int, exclude ...int64) ([]*queue.Item, error)
	Transition(ctx context.Context, item *queue.Item, to queue.Status) error
	RecordFailure(ctx context.Context, item *queue.Item, errText string) (*queue.Item, error)
	Release(ctx context.Context, items ...*queue.Item) error
}

// Options controls stage execution and queue persistence behavior.
type Options struct {
	Logger      *slog.Logger
	Store       Store
	Handler     stage.Handler
	Metrics     *metrics.Metrics
	StageName   string
	Input       queue.Status
	BatchSize   int
	Parallelism int
	ItemTimeout time.Duration
}

// Runner executes one stage handler against batches of claimed items.
type Runner struct {
	logger      *slog.Logger
	store       Store
	handler     stage.Handler
	metrics     *metrics.Metrics
	name        string
	input       queue.Status
	next        queue.Status
	batchSize   int
	parallelism int
	itemTimeout time.Duration
}

// New validates opts and builds a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Store == nil {
		return nil, errors.New("queue store is required")
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	next, ok := queue.NextStatus(opts.Input)
	if !ok {
		return nil, fmt.Errorf("%w: no forward edge from %q", queue.ErrInvalidTransition, opts.Input)
	}
	name := strings.TrimSpace(opts.StageName)
	if name == "" {
		name = string(opts.Input)
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("stage %s: batch size must be positive", name)
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Runner{
		logger:      logging.NewComponentLogger(opts.Logger, "stage-"+name),
		store:       opts.Store,
		handler:     opts.Handler,
		metrics:     opts.Metrics,
		name:        name,
		input:       opts.Input,
		next:        next,
		batchSize:   opts.BatchSize,
		parallelism: parallelism,
		itemTimeout: opts.ItemTimeout,
	}, nil
}

// Name returns the stage name.
func (r *Runner) Name() string { return r.name }

// Input returns the status the runner consumes.
func (r *Runner) Input() queue.Status { return r.input }

// HealthCheck delegates to the handler.
func (r *Runner) HealthCheck(ctx context.Context) stage.Health {
	return r.handler.HealthCheck(ctx)
}

// RunBatch claims one batch and processes it. Zero claimed items is a silent
// no-op. The returned error is non-nil only for store failures and
// cancellation before the claim.
func (r *Runner) RunBatch(ctx context.Context) (Report, error) {
	report, _, err := r.runBatch(ctx, nil)
	return report, err
}

func (r *Runner) runBatch(ctx context.Context, attempted []int64) (Report, []*queue.Item, error) {
	ctx = services.WithStage(ctx, r.name)
	items, err := r.store.ClaimBatch(ctx, r.input, r.batchSize, attempted...)
	if err != nil {
		return Report{}, nil, fmt.Errorf("claim %s batch: %w", r.name, err)
	}
	tally := &tally{}
	tally.report.Batches = 1
	tally.report.Claimed = len(items)
	if len(items) == 0 {
		return tally.report, nil, nil
	}
	r.metrics.ObserveBatch(r.name, len(items))
	start := time.Now()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.parallelism)
	started := make([]bool, len(items))
	var startedMu sync.Mutex

	for i, item := range items {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return nil
			}
			startedMu.Lock()
			started[i] = true
			startedMu.Unlock()
			return r.process(groupCtx, item, tally)
		})
	}
	runErr := group.Wait()

	var unstarted []*queue.Item
	for i, item := range items {
		if !started[i] {
			unstarted = append(unstarted, item)
		}
	}
	if len(unstarted) > 0 {
		if err := r.store.Release(context.WithoutCancel(ctx), unstarted...); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("release unstarted claims: %w", err))
		} else {
			tally.add(func(rep *Report) { rep.Released += len(unstarted) })
			for range unstarted {
				r.metrics.IncStageItem(r.name, metrics.OutcomeReleased)
			}
		}
	}

	report := tally.snapshot()
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_batch_complete"),
		logging.Int("claimed", report.Claimed),
		logging.Int("advanced", report.Advanced),
		logging.Int("soft_failures", report.SoftFailures),
		logging.Int("exhausted", report.Exhausted),
		logging.Int("released", report.Released),
		logging.Int("lost", report.Lost),
		logging.Duration("batch_duration", time.Since(start)),
	}
	if runErr != nil {
		attrs = append(attrs, logging.Error(runErr))
		logging.ErrorWithContext(r.logger, "stage batch aborted", "stage_batch_aborted",
			append(attrs, logging.String(logging.FieldErrorHint, "check queue database access"))...)
		return report, items, runErr
	}
	if report.SoftFailures+report.Exhausted > 0 {
		r.logger.Warn("stage batch finished with failures", logging.Args(attrs...)...)
	} else {
		r.logger.Info("stage batch finished", logging.Args(attrs...)...)
	}
	return report, items, nil
}

// Drain runs batches until a claim returns fewer items than the batch size,
// a batch makes no progress, or maxBatches is reached. An item claimed once
// during a drain is not claimed again by it, so one drain spends at most
// one retry per item.
func (r *Runner) Drain(ctx context.Context, maxBatches int) (Report, error) {
	if maxBatches <= 0 {
		maxBatches = 1
	}
	var (
		total     Report
		attempted []int64
	)
	for range maxBatches {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		report, items, err := r.runBatch(ctx, attempted)
		for _, item := range items {
			attempted = append(attempted, item.ID)
		}
		total.Add(report)
		if err != nil {
			return total, err
		}
		if report.Claimed < r.batchSize || report.Advanced == 0 {
			break
		}
	}
	return total, nil
}

func (r *Runner) process(groupCtx context.Context, item *queue.Item, tally *tally) error {
	itemCtx := services.WithItemID(groupCtx, item.ID)
	itemCtx = services.WithExternalID(itemCtx, item.ExternalID)
	itemCtx = services.WithRequestID(itemCtx, uuid.NewString())
	logger := logging.WithContext(itemCtx, r.logger)
	writeCtx := context.WithoutCancel(itemCtx)

	start := time.Now()
	execErr := r.execute(itemCtx, item)

	if execErr == nil {
		err := r.store.Transition(writeCtx, item, r.next)
		if errors.Is(err, queue.ErrClaimLost) {
			r.claimLost(logger, tally, err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("persist %s transition for item %d: %w", r.name, item.ID, err)
		}
		tally.add(func(rep *Report) { rep.Advanced++ })
		r.metrics.IncStageItem(r.name, metrics.OutcomeAdvanced)
		logger.Debug("stage item advanced",
			logging.String(logging.FieldEventType, "stage_item_advanced"),
			logging.String("next_status", string(r.next)),
			logging.Duration("item_duration", time.Since(start)),
		)
		return nil
	}

	// Shutdown or an aborted cycle: give the item back without spending a retry.
	if groupCtx.Err() != nil {
		if err := r.store.Release(writeCtx, item); err != nil {
			return fmt.Errorf("release item %d: %w", item.ID, err)
		}
		tally.add(func(rep *Report) { rep.Released++ })
		r.metrics.IncStageItem(r.name, metrics.OutcomeReleased)
		logger.Debug("stage item released on cancellation", logging.Error(execErr))
		return nil
	}

	updated, err := r.store.RecordFailure(writeCtx, item, failureMessage(execErr))
	if errors.Is(err, queue.ErrClaimLost) {
		r.claimLost(logger, tally, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("record %s failure for item %d: %w", r.name, item.ID, err)
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldErrorKind, services.ErrorKind(execErr)),
		logging.Int("retries", updated.Retries),
		logging.String("resolved_status", string(updated.Status)),
		logging.Error(execErr),
	}
	if updated.Status == queue.StatusFailed {
		tally.add(func(rep *Report) { rep.Exhausted++ })
		r.metrics.IncStageItem(r.name, metrics.OutcomeExhausted)
		logging.ErrorWithContext(logger, "stage item failed permanently", "stage_item_failed",
			append(attrs, logging.String(logging.FieldErrorHint, "inspect the message and use queue set to requeue"))...)
		return nil
	}
	tally.add(func(rep *Report) { rep.SoftFailures++ })
	r.metrics.IncStageItem(r.name, metrics.OutcomeSoftFailure)
	logging.WarnWithContext(logger, "stage item failed; will retry", "stage_item_retry",
		append(attrs,
			logging.String(logging.FieldImpact, "item stays in its status until the next run"),
		)...)
	return nil
}

func (r *Runner) execute(ctx context.Context, item *queue.Item) (err error) {
	if r.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.itemTimeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s handler panic: %v\n%s", r.name, p, debug.Stack())
		}
	}()
	err = r.handler.Execute(ctx, item)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		err = services.Wrap(services.ErrTimeout, r.name, "execute", fmt.Sprintf("exceeded %v", r.itemTimeout), err)
	}
	return err
}

func (r *Runner) claimLost(logger *slog.Logger, tally *tally, err error) {
	tally.add(func(rep *Report) { rep.Lost++ })
	logging.WarnWithContext(logger, "stage item claim lost", "stage_claim_lost",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "increase pipeline.claim_lease_seconds if handlers run long"),
		logging.String(logging.FieldImpact, "result discarded; another claim owns the item"),
	)
}

func failureMessage(err error) string {
	msg := strings.TrimSpace(err.Error())
	if idx := strings.Index(msg, "\n"); idx >= 0 {
		msg = strings.TrimSpace(msg[:idx])
	}
	return msg
}
