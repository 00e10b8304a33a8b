package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/applicantpool/internal/adapters/lock"
)

func TestNopLocker(t *testing.T) {
	Convey("Given a no-op locker", t, func() {
		var l lock.Locker = lock.NopLocker{}

		Convey("Then leases are always granted and released", func() {
			lease, err := l.Acquire(context.Background())
			So(err, ShouldBeNil)
			again, err := l.Acquire(context.Background())
			So(err, ShouldBeNil)
			So(lease.Refresh(context.Background()), ShouldBeNil)
			So(lease.Release(context.Background()), ShouldBeNil)
			So(again.Release(context.Background()), ShouldBeNil)
		})
	})
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	Convey("Given a redis locker backed by miniredis", t, func() {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		Reset(func() { _ = client.Close() })

		l := lock.NewRedisLocker(client,
			lock.WithKey("test:lock"),
			lock.WithTTL(time.Second),
			lock.WithWait(50*time.Millisecond),
			lock.WithRetryInterval(5*time.Millisecond),
		)

		Convey("When the lock is free", func() {
			lease, err := l.Acquire(ctx)

			Convey("Then it is acquired with a TTL", func() {
				So(err, ShouldBeNil)
				So(mr.Exists("test:lock"), ShouldBeTrue)
				So(mr.TTL("test:lock"), ShouldEqual, time.Second)
			})

			Convey("And a second writer tries to take it", func() {
				_, err := l.Acquire(ctx)

				Convey("Then it gives up after the wait budget", func() {
					So(errors.Is(err, lock.ErrNotAcquired), ShouldBeTrue)
				})
			})

			Convey("And it is released", func() {
				So(lease.Release(ctx), ShouldBeNil)

				Convey("Then the key is gone and the lock can be taken again", func() {
					So(mr.Exists("test:lock"), ShouldBeFalse)
					next, err := l.Acquire(ctx)
					So(err, ShouldBeNil)
					So(next.Release(ctx), ShouldBeNil)
				})
			})

			Convey("And it is refreshed before expiry", func() {
				mr.FastForward(800 * time.Millisecond)
				So(lease.Refresh(ctx), ShouldBeNil)

				Convey("Then the TTL restarts and the lock stays held", func() {
					So(mr.TTL("test:lock"), ShouldEqual, time.Second)
					mr.FastForward(800 * time.Millisecond)
					_, err := l.Acquire(ctx)
					So(errors.Is(err, lock.ErrNotAcquired), ShouldBeTrue)
					So(lease.Release(ctx), ShouldBeNil)
				})
			})

			Convey("And the lease expires and another writer takes over", func() {
				mr.FastForward(2 * time.Second)
				other, err := l.Acquire(ctx)
				So(err, ShouldBeNil)

				Convey("Then the stale holder cannot refresh", func() {
					So(errors.Is(lease.Refresh(ctx), lock.ErrLeaseLost), ShouldBeTrue)
					So(mr.TTL("test:lock"), ShouldEqual, time.Second)
					So(other.Refresh(ctx), ShouldBeNil)
				})

				Convey("Then the stale release does not free the new holder", func() {
					So(lease.Release(ctx), ShouldEqual, lock.ErrLeaseLost)
					So(mr.Exists("test:lock"), ShouldBeTrue)
					So(other.Release(ctx), ShouldBeNil)
				})
			})
		})

		Convey("When the context is cancelled while waiting", func() {
			held, err := l.Acquire(ctx)
			So(err, ShouldBeNil)

			slow := lock.NewRedisLocker(client,
				lock.WithKey("test:lock"),
				lock.WithWait(time.Minute),
				lock.WithRetryInterval(5*time.Millisecond),
			)
			cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			_, err = slow.Acquire(cctx)

			Convey("Then Acquire returns the context error", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(held.Release(ctx), ShouldBeNil)
			})
		})

		Convey("When redis is down", func() {
			mr.Close()
			_, err := l.Acquire(ctx)

			Convey("Then a backend error is returned", func() {
				So(errors.Is(err, lock.ErrBackend), ShouldBeTrue)
			})
		})
	})
}
