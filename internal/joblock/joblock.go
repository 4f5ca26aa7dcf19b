// Package joblock provides the optional distributed job-admission
// lock of spec.md §5 ("the host system MUST enforce its own admission
// control"): a Redis SETNX-based mutex keyed by the lock name the
// caller passes (cmd/reconciler always passes "reconcile", so only one
// job runs at a time among processes sharing the Redis instance).
// Adapted from the teacher's internal/db cache lock.
package joblock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hamzaKhattat/cdr-reconciler/pkg/errors"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/logger"
)

// Locker acquires and releases the admission lock. A nil-client
// Locker (Disabled) is always a no-op, matching the teacher's
// "return a no-op cache that doesn't error" pattern so callers don't
// need to special-case the unconfigured case.
type Locker struct {
	client *redis.Client
	prefix string
}

// New returns a Locker backed by the given Redis address. Pass an
// empty addr to get a disabled Locker whose Acquire always succeeds
// with a no-op release.
func New(addr, password string, db int) *Locker {
	if addr == "" {
		return &Locker{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Locker{client: client, prefix: "cdr-reconciler"}
}

// Ping verifies the lock backend is reachable; used by the health
// check when the lock is enabled.
func (l *Locker) Ping(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	return l.client.Ping(ctx).Err()
}

func (l *Locker) key(name string) string {
	return fmt.Sprintf("%s:lock:%s", l.prefix, name)
}

// Acquire takes the named lock for ttl and returns a release function.
// Release is always safe to call exactly once, even on a disabled
// Locker.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	if l.client == nil {
		return func() {}, nil
	}

	lockKey := l.key(name)
	token := fmt.Sprintf("%d", time.Now().UnixNano())

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to acquire job lock")
	}
	if !ok {
		return nil, errors.New(errors.ErrInternal, "a reconciliation job is already running").
			WithContext("lock", name)
	}

	release := func() {
		script := redis.NewScript(`
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			else
				return 0
			end
		`)
		if _, err := script.Run(ctx, l.client, []string{lockKey}, token).Result(); err != nil {
			logger.WithContext(ctx).WithField("lock", name).Warn("failed to release job lock")
		}
	}
	return release, nil
}
