package redisstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const inflightKey string = "endpoint:inflight"

// claimScript adds the member with a lease deadline unless a live lease
// already exists.
var claimScript = redis.NewScript(`
local key = KEYS[1]
local member = ARGV[1]
local now = tonumber(ARGV[2])
local deadline = tonumber(ARGV[3])

local current = redis.call("ZSCORE", key, member)
if current and tonumber(current) > now then
	return 0
end
redis.call("ZADD", key, deadline, member)
return 1
`)

// reclaimScript drops leases whose deadline has passed, left behind by
// workers that died mid-check.
var reclaimScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

local items = redis.call("ZRANGEBYSCORE", key, "-inf", now, "LIMIT", 0, limit)
for i, member in ipairs(items) do
	redis.call("ZREM", key, member)
end
return #items
`)

// ClaimInflight takes a lease on the endpoint for the duration of one check.
func (c *Client) ClaimInflight(ctx context.Context, endpointID uuid.UUID, now time.Time, lease time.Duration) (bool, error) {
	var claimed int64
	err := retry(ctx, 2, func() error {
		var err error
		claimed, err = claimScript.Run(ctx, c.rdb, []string{inflightKey},
			endpointID.String(), now.UnixMilli(), now.Add(lease).UnixMilli()).Int64()
		return err
	})
	return claimed == 1, err
}

func (c *Client) ReleaseInflight(ctx context.Context, endpointID uuid.UUID) error {
	return retry(ctx, 2, func() error {
		return c.rdb.ZRem(ctx, inflightKey, endpointID.String()).Err()
	})
}

func (c *Client) ReclaimInflight(ctx context.Context, now time.Time, limit int) (int64, error) {
	return reclaimScript.Run(ctx, c.rdb, []string{inflightKey}, now.UnixMilli(), limit).Int64()
}
