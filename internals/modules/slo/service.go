package slo

import (
	"context"
	"fmt"
	"time"

	"pulsewatch/internals/modules/result"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

type History interface {
	Since(ctx context.Context, endpointID uuid.UUID, since time.Time) ([]result.Record, error)
}

type Cache interface {
	Get(ctx context.Context, endpointID uuid.UUID) (Snapshot, bool)
	Set(ctx context.Context, endpointID uuid.UUID, snap Snapshot, ttl time.Duration)
	Invalidate(ctx context.Context, endpointID uuid.UUID)
}

type Service struct {
	history History
	cache   Cache
	params  Params
	ttl     time.Duration
	logger  *zerolog.Logger
}

func NewService(history History, cache Cache, params Params, ttl time.Duration, logger *zerolog.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{
		history: history,
		cache:   cache,
		params:  params.normalized(),
		ttl:     ttl,
		logger:  logger,
	}
}

func (s *Service) Params() Params { return s.params }

// Snapshot serves a cached snapshot when one is fresh, else recomputes it.
func (s *Service) Snapshot(ctx context.Context, endpointID uuid.UUID, now time.Time) (Snapshot, error) {
	if s.ttl > 0 {
		if snap, ok := s.cache.Get(ctx, endpointID); ok {
			return snap, nil
		}
	}
	return s.Refresh(ctx, endpointID, now)
}

// Refresh always recomputes and replaces the cached snapshot.
func (s *Service) Refresh(ctx context.Context, endpointID uuid.UUID, now time.Time) (Snapshot, error) {
	records, err := s.history.Since(ctx, endpointID, now.Add(-s.params.Window()))
	if err != nil {
		return Snapshot{}, fmt.Errorf("load slo history: %w", err)
	}

	snap := Compute(records, s.params, now)
	if s.ttl > 0 {
		s.cache.Set(ctx, endpointID, snap, s.ttl)
	}
	return snap, nil
}

// Invalidate forgets the cached snapshot so the next read recomputes it.
func (s *Service) Invalidate(ctx context.Context, endpointID uuid.UUID) {
	s.cache.Invalidate(ctx, endpointID)
}

type memoryEntry struct {
	snap    Snapshot
	expires time.Time
}

// DefaultMemoryCacheSize bounds the in-process cache; least recently used
// endpoints are evicted first.
const DefaultMemoryCacheSize = 10000

// MemoryCache is the in-process Cache used when Redis is not configured.
type MemoryCache struct {
	entries *lru.Cache[uuid.UUID, memoryEntry]
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	entries, _ := lru.New[uuid.UUID, memoryEntry](DefaultMemoryCacheSize)
	return &MemoryCache{entries: entries, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, id uuid.UUID) (Snapshot, bool) {
	e, ok := c.entries.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	if c.now().After(e.expires) {
		c.entries.Remove(id)
		return Snapshot{}, false
	}
	return e.snap, true
}

func (c *MemoryCache) Set(_ context.Context, id uuid.UUID, snap Snapshot, ttl time.Duration) {
	c.entries.Add(id, memoryEntry{snap: snap, expires: c.now().Add(ttl)})
}

func (c *MemoryCache) Invalidate(_ context.Context, id uuid.UUID) {
	c.entries.Remove(id)
}

// KV is the slice of the Redis client the shared cache needs.
type KV interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisCache shares snapshots between processes. Read and write errors are
// logged and treated as misses.
type RedisCache struct {
	kv     KV
	logger *zerolog.Logger
}

func NewRedisCache(kv KV, logger *zerolog.Logger) *RedisCache {
	return &RedisCache{kv: kv, logger: logger}
}

func snapshotKey(id uuid.UUID) string {
	return fmt.Sprintf("endpoint:slo:%v", id)
}

func (c *RedisCache) Get(ctx context.Context, id uuid.UUID) (Snapshot, bool) {
	var snap Snapshot
	ok, err := c.kv.GetJSON(ctx, snapshotKey(id), &snap)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint_id", id.String()).Msg("slo cache read failed")
		return Snapshot{}, false
	}
	return snap, ok
}

func (c *RedisCache) Set(ctx context.Context, id uuid.UUID, snap Snapshot, ttl time.Duration) {
	if err := c.kv.SetJSON(ctx, snapshotKey(id), snap, ttl); err != nil {
		c.logger.Warn().Err(err).Str("endpoint_id", id.String()).Msg("slo cache write failed")
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.kv.Del(ctx, snapshotKey(id)); err != nil {
		c.logger.Warn().Err(err).Str("endpoint_id", id.String()).Msg("slo cache invalidate failed")
	}
}
