// Package worker drains the batch queue and applies each batch to the
// persisted pool under the writer lock.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/applicantpool/internal/adapters/lock"
	"github.com/okian/applicantpool/internal/adapters/mq/queue"
	"github.com/okian/applicantpool/internal/domain/model"
	"github.com/okian/applicantpool/internal/domain/pool"
	"github.com/okian/applicantpool/pkg/logger"
	"github.com/okian/applicantpool/pkg/metrics"
)

// Batch results recorded in metrics.
const (
	resultOK     = "ok"
	resultFailed = "failed"
)

// Merger applies a batch to a pool and returns the new pool.
type Merger interface {
	IngestBatch(ctx context.Context, p *pool.Pool, rows []model.Row, batchID string) (*pool.Pool, []model.MergeOutcome, error)
}

// Store loads and saves the whole pool.
type Store interface {
	Load(ctx context.Context) ([]model.ApplicantRecord, error)
	Save(ctx context.Context, recs []model.ApplicantRecord) error
}

// Publisher receives every committed pool.
type Publisher interface {
	Publish(p *pool.Pool)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes batch jobs one at a time.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is closed.
	Run(ctx context.Context)

	// Shutdown stops the worker after the batch in progress. Jobs still
	// queued are answered with queue.ErrStopped.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker. Exactly one should run per queue.
type InMemoryWorker struct {
	queue     Queue
	merger    Merger
	store     Store
	locker    lock.Locker
	publisher Publisher
	name      string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, merger Merger, store Store, publisher Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		merger:    merger,
		store:     store,
		locker:    lock.NopLocker{},
		publisher: publisher,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		// Shutdown takes priority over queued jobs.
		select {
		case <-w.shutdown:
			w.reject(jobs)
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.reject(jobs)
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// reject answers jobs that are already buffered so their submitters return.
func (w *InMemoryWorker) reject(jobs <-chan queue.Job) {
	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			reply(job, model.BatchResult{BatchID: job.Batch.ID, Err: queue.ErrStopped})
		default:
			return
		}
	}
}

// process applies one job and answers its submitter.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) { //nolint:gocritic // hugeParam: Job must be passed by value for channel semantics
	start := time.Now()
	res := w.apply(ctx, &job.Batch)
	latency := float64(time.Since(start).Milliseconds())

	if res.Err != nil {
		metrics.RecordBatch(resultFailed, latency)
		metrics.RecordErrorByComponent("worker", errorType(res.Err))
		w.logger.Error(ctx, "batch failed",
			logger.String("batch_id", job.Batch.ID),
			logger.Int("rows", len(job.Batch.Rows)),
			logger.Error(res.Err))
	} else {
		metrics.RecordBatch(resultOK, latency)
		for i := range res.Outcomes {
			o := &res.Outcomes[i]
			metrics.RecordRow(string(o.Action), string(o.MatchedBy))
			for _, issue := range o.Issues {
				metrics.RecordDataQualityIssue(issue)
			}
		}
		w.logger.Debug(ctx, "batch committed",
			logger.String("batch_id", job.Batch.ID),
			logger.Int("pool_size", res.PoolSize),
			logger.Float64("latency_ms", latency))
	}
	reply(job, res)
}

// apply runs lock -> load -> merge -> confirm lock -> save -> publish for
// one batch.
func (w *InMemoryWorker) apply(ctx context.Context, b *model.Batch) (res model.BatchResult) {
	res.BatchID = b.ID

	lease, err := w.locker.Acquire(ctx)
	if err != nil {
		res.Err = fmt.Errorf("acquire writer lock: %w", err)
		return res
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			w.logger.Warn(ctx, "release writer lock", logger.String("batch_id", b.ID), logger.Error(err))
		}
	}()

	recs, err := w.store.Load(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	current, err := pool.FromRecords(recs)
	if err != nil {
		res.Err = fmt.Errorf("rebuild pool: %w", err)
		return res
	}

	next, outcomes, err := w.merger.IngestBatch(ctx, current, b.WithSourceFile(), b.ID)
	if err != nil {
		res.Err = err
		return res
	}
	// No write once the lease is gone.
	if err := lease.Refresh(ctx); err != nil {
		res.Err = fmt.Errorf("confirm writer lock: %w", err)
		return res
	}
	if err := w.store.Save(ctx, next.Records()); err != nil {
		res.Err = err
		return res
	}

	w.publisher.Publish(next)
	metrics.UpdatePoolRecords(next.Len())

	res.Outcomes = outcomes
	res.Summary = model.Summarize(outcomes)
	res.PoolSize = next.Len()
	return res
}

func reply(job queue.Job, res model.BatchResult) { //nolint:gocritic // hugeParam: Job must be passed by value for channel semantics
	select {
	case job.Reply <- res:
	default:
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		return "lock_timeout"
	case errors.Is(err, lock.ErrLeaseLost):
		return "lock_lost"
	case errors.Is(err, pool.ErrDuplicateKey):
		return "pool_invariant"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "batch_error"
	}
}
