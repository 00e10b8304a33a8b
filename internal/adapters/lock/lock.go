// Package lock provides the exclusive writer lock taken around each batch
// ingest so that only one process mutates the persisted pool at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/okian/applicantpool/pkg/metrics"
)

// Sentinel kinds for lock errors.
var (
	ErrNotAcquired = errors.New("lock not acquired")
	ErrLeaseLost   = errors.New("lock lease lost")
	ErrBackend     = errors.New("lock backend")
)

// Locker hands out exclusive leases.
type Locker interface {
	// Acquire blocks until the lock is held, the wait budget is spent
	// (ErrNotAcquired) or ctx is done.
	Acquire(ctx context.Context) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	// Refresh confirms the lease is still ours and restarts its TTL. It
	// returns ErrLeaseLost when the lease expired in the meantime; the
	// holder must not write after that.
	Refresh(ctx context.Context) error
	// Release gives the lock up. It returns ErrLeaseLost when the lease
	// expired and someone else took the lock in the meantime.
	Release(ctx context.Context) error
}

// NopLocker always succeeds immediately. Use it for single-process
// deployments where the in-process queue already serializes writers.
type NopLocker struct{}

// Acquire returns a lease that does nothing on release.
func (NopLocker) Acquire(context.Context) (Lease, error) { return nopLease{}, nil }

type nopLease struct{}

func (nopLease) Refresh(context.Context) error { return nil }

func (nopLease) Release(context.Context) error { return nil }

// refreshScript extends the TTL only if the key still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a per-lease token.
type RedisLocker struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client redis.UniversalClient, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client: client,
		key:    "applicantpool:ingest",
		ttl:    30 * time.Second,
		wait:   10 * time.Second,
		retry:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire polls SET NX until it wins or the wait budget runs out.
func (l *RedisLocker) Acquire(ctx context.Context) (Lease, error) {
	token := uuid.NewString()
	start := time.Now()
	deadline := start.Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: setnx %s: %w", ErrBackend, l.key, err)
		}
		if ok {
			metrics.RecordLockWait(float64(time.Since(start).Milliseconds()))
			return &redisLease{client: l.client, key: l.key, token: token, ttl: l.ttl}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s held by another writer", ErrNotAcquired, l.key)
		}

		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
}

func (le *redisLease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, le.client, []string{le.key}, le.token, le.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("%w: refresh %s: %w", ErrBackend, le.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrLeaseLost, le.key)
	}
	return nil
}

func (le *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, le.client, []string{le.key}, le.token).Int()
	if err != nil {
		return fmt.Errorf("%w: release %s: %w", ErrBackend, le.key, err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}
