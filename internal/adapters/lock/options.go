package lock

import "time"

// Option applies a configuration option to the RedisLocker.
type Option func(*RedisLocker)

// WithKey sets the Redis key that represents the lock.
func WithKey(key string) Option {
	return func(l *RedisLocker) {
		if key != "" {
			l.key = key
		}
	}
}

// WithTTL sets how long a lease lives if its holder dies without releasing.
func WithTTL(ttl time.Duration) Option {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithWait sets how long Acquire keeps retrying. Zero means a single attempt.
func WithWait(wait time.Duration) Option {
	return func(l *RedisLocker) {
		if wait >= 0 {
			l.wait = wait
		}
	}
}

// WithRetryInterval sets the pause between acquisition attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(l *RedisLocker) {
		if d > 0 {
			l.retry = d
		}
	}
}
