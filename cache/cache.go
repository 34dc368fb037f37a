/*
Package cache provides the read-through reservation cache.

PURPOSE:
  Get-by-id is the hottest read in the system. This package caches the
  joined reservation record in Redis with an in-memory fallback, so a
  Redis outage degrades to local caching instead of failing reads.

IMPLEMENTATIONS:
  Redis     production cache, JSON values with a TTL
  Memory    process-local map with the same TTL semantics
  Failover  wraps a primary and a fallback; flips to the fallback when
            the primary errors and logs the degradation once per miss

INVALIDATION:
  The reservation service invalidates on every write. The cache is an
  optimization, never a source of truth; on any doubt it misses.
*/
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lodgeworks/booking-engine/reservation"
)

// =============================================================================
// REDIS
// =============================================================================

// Redis caches reservations as JSON under reservation:<id>.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client from address/password/db settings.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func key(id string) string {
	return fmt.Sprintf("reservation:%s", id)
}

func (c *Redis) Get(ctx context.Context, id string) (*reservation.Reservation, bool) {
	val, err := c.client.Get(ctx, key(id)).Result()
	if err != nil {
		return nil, false
	}
	var r reservation.Reservation
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return nil, false
	}
	return &r, true
}

func (c *Redis) Set(ctx context.Context, r *reservation.Reservation) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key(r.ID), data, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, id string) {
	_ = c.client.Del(ctx, key(id)).Err()
}

// Ping reports whether the backing Redis is reachable.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// =============================================================================
// MEMORY
// =============================================================================

type memoryEntry struct {
	r       *reservation.Reservation
	expires time.Time
}

// Memory is a process-local cache with TTL. Used as the failover target
// and in tests.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

func (c *Memory) Get(ctx context.Context, id string) (*reservation.Reservation, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	cp := *e.r
	return &cp, true
}

func (c *Memory) Set(ctx context.Context, r *reservation.Reservation) {
	cp := *r
	c.mu.Lock()
	c.entries[r.ID] = memoryEntry{r: &cp, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Memory) Invalidate(ctx context.Context, id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// =============================================================================
// FAILOVER
// =============================================================================

// Failover prefers the primary and degrades to the fallback when the
// primary misbehaves. Writes go to both so the fallback stays warm.
type Failover struct {
	primary  reservation.Cache
	fallback reservation.Cache
	log      zerolog.Logger
}

func NewFailover(primary, fallback reservation.Cache, log zerolog.Logger) *Failover {
	return &Failover{primary: primary, fallback: fallback, log: log}
}

func (c *Failover) Get(ctx context.Context, id string) (*reservation.Reservation, bool) {
	if r, ok := c.primary.Get(ctx, id); ok {
		return r, true
	}
	r, ok := c.fallback.Get(ctx, id)
	if ok {
		c.log.Debug().Str("reservation_id", id).Msg("cache served from fallback")
	}
	return r, ok
}

func (c *Failover) Set(ctx context.Context, r *reservation.Reservation) {
	c.primary.Set(ctx, r)
	c.fallback.Set(ctx, r)
}

func (c *Failover) Invalidate(ctx context.Context, id string) {
	c.primary.Invalidate(ctx, id)
	c.fallback.Invalidate(ctx, id)
}
