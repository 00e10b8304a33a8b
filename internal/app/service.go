// Package service wires the merge engine, the batch queue and the store
// into the applicant pool service used by the HTTP API.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/applicantpool/internal/adapters/lock"
	batchqueue "github.com/okian/applicantpool/internal/adapters/mq/queue"
	"github.com/okian/applicantpool/internal/adapters/mq/worker"
	"github.com/okian/applicantpool/internal/adapters/repository"
	"github.com/okian/applicantpool/internal/domain/dedupe"
	"github.com/okian/applicantpool/internal/domain/model"
	"github.com/okian/applicantpool/internal/domain/pool"
	"github.com/okian/applicantpool/internal/domain/types"
	"github.com/okian/applicantpool/pkg/logger"
	"github.com/okian/applicantpool/pkg/metrics"
)

const (
	defaultQueueSize    = 64
	defaultMaxBatchRows = 50_000
	recentLimit         = 10
	shutdownTimeout     = 30 * time.Second
)

// Service implements the API dependencies for the applicant pool.
type Service struct {
	mu sync.RWMutex

	// Core components
	store  repository.Store
	locker lock.Locker
	engine *dedupe.Engine
	queue  *batchqueue.InMemoryQueue
	worker *worker.InMemoryWorker

	// Committed pool, replaced wholesale after every batch.
	snapshot atomic.Pointer[pool.Pool]
	merged   atomic.Int64

	// Configuration
	queueSize    int
	maxBatchRows int

	// State
	started bool
	stopCh  chan struct{}
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:    defaultQueueSize,
		maxBatchRows: defaultMaxBatchRows,
		stopCh:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.snapshot.Store(pool.New())
	return s
}

// Start loads the persisted pool and starts the batch worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.locker == nil {
		s.locker = lock.NopLocker{}
	}
	if s.engine == nil {
		s.engine = dedupe.NewEngine()
	}

	s.logger.Info(ctx, "starting applicant pool service...")

	recs, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}
	initial, err := pool.FromRecords(recs)
	if err != nil {
		return fmt.Errorf("rebuild pool: %w", err)
	}
	s.snapshot.Store(initial)
	metrics.UpdatePoolRecords(initial.Len())

	s.queue = batchqueue.NewInMemoryQueue(batchqueue.WithCapacity(s.queueSize))
	s.worker = worker.NewInMemoryWorker(s.queue, s.engine, s.store, s,
		worker.WithName("batch"),
		worker.WithLocker(s.locker),
	)

	// The worker outlives the start context and stops through Stop.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.stopCh = make(chan struct{})
	go s.worker.Run(runCtx)

	s.started = true
	s.logger.Info(ctx, "applicant pool service started",
		logger.Int("records", initial.Len()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("maxBatchRows", s.maxBatchRows),
	)

	return nil
}

// Stop gracefully shuts down the service. The batch in progress finishes;
// queued batches are answered with queue.ErrStopped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping applicant pool service...")

	_ = s.queue.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.worker.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker shutdown", logger.Error(err))
	}
	s.cancel()

	close(s.stopCh)

	s.started = false
	s.logger.Info(ctx, "applicant pool service stopped")
}

// Close stops the service and releases the store.
func (s *Service) Close() error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// Publish makes p the pool served to readers. p must not be modified after.
func (s *Service) Publish(p *pool.Pool) {
	s.snapshot.Store(p)
	s.merged.Add(1)
}

// Submit queues a batch and waits for its merge result. A blank batch ID is
// replaced with a generated one.
func (s *Service) Submit(ctx context.Context, b model.Batch) (model.BatchResult, error) { //nolint:gocritic // hugeParam: batches are handed over by value
	s.mu.RLock()
	started, q, stopCh := s.started, s.queue, s.stopCh
	s.mu.RUnlock()

	if !started {
		return model.BatchResult{}, ErrNotStarted
	}
	if len(b.Rows) > s.maxBatchRows {
		return model.BatchResult{}, fmt.Errorf("%w: %d rows, limit %d", ErrBatchTooLarge, len(b.Rows), s.maxBatchRows)
	}

	b.ID = strings.TrimSpace(b.ID)
	if b.ID == "" {
		b.ID = "batch-" + uuid.NewString()
	}

	job := batchqueue.NewJob(b)
	if !q.Enqueue(ctx, job) {
		switch {
		case q.IsClosed():
			return model.BatchResult{BatchID: b.ID}, batchqueue.ErrClosed
		case ctx.Err() != nil:
			return model.BatchResult{BatchID: b.ID}, ctx.Err()
		default:
			return model.BatchResult{BatchID: b.ID}, batchqueue.ErrFull
		}
	}

	s.logger.Debug(ctx, "batch queued",
		logger.String("batch_id", b.ID),
		logger.Int("rows", len(b.Rows)),
	)

	select {
	case res := <-job.Reply:
		return res, res.Err
	case <-ctx.Done():
		// The batch may still be merged; the caller just stops waiting.
		return model.BatchResult{BatchID: b.ID}, ctx.Err()
	case <-stopCh:
		select {
		case res := <-job.Reply:
			return res, res.Err
		default:
			return model.BatchResult{BatchID: b.ID}, batchqueue.ErrStopped
		}
	}
}

// Snapshot returns the committed pool. Callers must treat it as read-only.
func (s *Service) Snapshot() *pool.Pool {
	return s.snapshot.Load()
}

// Applicants returns the records matching q.
func (s *Service) Applicants(_ context.Context, q pool.Query) []model.ApplicantRecord {
	return s.Snapshot().Filter(q)
}

// Applicant returns one record by pool ID.
func (s *Service) Applicant(_ context.Context, poolID string) (model.ApplicantRecord, error) {
	rec, ok := s.Snapshot().Get(poolID)
	if !ok {
		return model.ApplicantRecord{}, fmt.Errorf("%w: %s", ErrNotFound, poolID)
	}
	return rec, nil
}

// Positions returns the distinct positions in the pool.
func (s *Service) Positions(_ context.Context) []string {
	return s.Snapshot().Positions()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() types.ServiceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.Snapshot()
	stats := types.ServiceStats{
		Started:         s.started,
		QueueCapacity:   s.queueSize,
		MaxBatchRows:    s.maxBatchRows,
		BatchesMerged:   s.merged.Load(),
		Pool:            p.Stats(),
		RecentlyUpdated: p.RecentlyUpdated(recentLimit),
	}

	if s.started {
		stats.QueueLength = s.queue.Len(context.Background())
	}

	return stats
}

// UpdateGauges refreshes the pool size and queue length gauges.
func (s *Service) UpdateGauges() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics.UpdatePoolRecords(s.Snapshot().Len())
	if s.started {
		metrics.UpdateQueueSize(s.queue.Len(context.Background()))
	}
}
