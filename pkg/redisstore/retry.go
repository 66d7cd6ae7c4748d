package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	goretry "github.com/sethvargo/go-retry"
)

const retryBackoff = 50 * time.Millisecond

// retry runs fn up to attempts times with a short constant backoff. redis.Nil
// is a result, not a failure, and is returned immediately.
func retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	b := goretry.WithMaxRetries(uint64(attempts-1), goretry.NewConstant(retryBackoff))

	return goretry.Do(ctx, b, func(context.Context) error {
		err := fn()
		if err == nil || errors.Is(err, redis.Nil) {
			return err
		}
		return goretry.RetryableError(err)
	})
}
