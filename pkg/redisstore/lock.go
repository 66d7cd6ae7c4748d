package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("redisstore: lock not acquired")

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a per-endpoint mutual-exclusion lock shared by every process
// evaluating alert state.
type Locker struct {
	c   *Client
	ttl time.Duration
}

func (c *Client) Locker(ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Locker{c: c, ttl: ttl}
}

func lockKey(endpointID uuid.UUID) string {
	return fmt.Sprintf("endpoint:lock:%v", endpointID)
}

// Lock blocks until the lock is held or ctx is done.
func (l *Locker) Lock(ctx context.Context, endpointID uuid.UUID) (func(), error) {
	key := lockKey(endpointID)
	token := uuid.NewString()
	wait := 10 * time.Millisecond

	for {
		ok, err := l.c.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// a fresh context so release still runs after ctx is cancelled
				relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(relCtx, l.c.rdb, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-time.After(wait):
		}
		if wait < 200*time.Millisecond {
			wait *= 2
		}
	}
}
