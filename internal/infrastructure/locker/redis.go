package locker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fluxionhq/fluxion/pkg/models"
)

// releaseScript deletes the lock key only when it still holds our token, so
// a lock that expired and was re-acquired by another holder is never
// released by the previous one.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker implements Locker on a shared Redis instance using
// SET NX PX with a per-acquisition token.
type RedisLocker struct {
	client         *redis.Client
	lockTTL        time.Duration
	acquireTimeout time.Duration
	retryInterval  time.Duration
}

// RedisLockerOption configures a RedisLocker.
type RedisLockerOption func(*RedisLocker)

// WithLockTTL overrides how long an acquired lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisLocker) { l.lockTTL = ttl }
}

// WithAcquireTimeout overrides how long acquisition may poll before failing.
func WithAcquireTimeout(d time.Duration) RedisLockerOption {
	return func(l *RedisLocker) { l.acquireTimeout = d }
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client *redis.Client, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client:         client,
		lockTTL:        60 * time.Second,
		acquireTimeout: 30 * time.Second,
		retryInterval:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithLock acquires the named lock, runs fn, and releases on all exit paths.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	token := uuid.New().String()
	redisKey := "lock:" + key

	acquired, err := l.acquire(ctx, redisKey, token)
	if err != nil {
		return err
	}
	if !acquired {
		return models.ErrLockTimeout
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.client.Eval(releaseCtx, releaseScript, []string{redisKey}, token).Err()
	}()

	return fn()
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) (bool, error) {
	deadline := time.Now().Add(l.acquireTimeout)
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.lockTTL).Result()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
