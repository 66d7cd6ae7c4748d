package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// streakTTL drops counters of endpoints that stopped being checked.
const streakTTL = 7 * 24 * time.Hour

func streakKey(endpointID uuid.UUID) string {
	return fmt.Sprintf("endpoint:streak:%v", endpointID)
}

// bumpScript increments one counter, zeroes the other and remembers the
// record that did it. Replaying the same record returns the stored count, so
// a retry after a lost reply does not count twice.
var bumpScript = redis.NewScript(`
local key = KEYS[1]
local field = ARGV[1]
local reset = ARGV[2]
local record = ARGV[3]
local ttl = tonumber(ARGV[4])

if record ~= "" and redis.call("HGET", key, "last") == record then
	return tonumber(redis.call("HGET", key, field) or "0")
end
local count = redis.call("HINCRBY", key, field, 1)
redis.call("HSET", key, reset, 0, "last", record)
redis.call("EXPIRE", key, ttl)
return count
`)

// RecordFailure bumps the consecutive-failure counter for the record and
// resets the success counter.
func (c *Client) RecordFailure(ctx context.Context, endpointID, recordID uuid.UUID) (int, error) {
	return c.bump(ctx, endpointID, recordID, "failures", "successes")
}

// RecordSuccess is the mirror of RecordFailure.
func (c *Client) RecordSuccess(ctx context.Context, endpointID, recordID uuid.UUID) (int, error) {
	return c.bump(ctx, endpointID, recordID, "successes", "failures")
}

func (c *Client) bump(ctx context.Context, endpointID, recordID uuid.UUID, field, reset string) (int, error) {
	record := ""
	if recordID != uuid.Nil {
		record = recordID.String()
	}

	var count int64
	err := retry(ctx, 3, func() error {
		var err error
		count, err = bumpScript.Run(ctx, c.rdb, []string{streakKey(endpointID)},
			field, reset, record, int64(streakTTL/time.Second)).Int64()
		return err
	})
	return int(count), err
}
