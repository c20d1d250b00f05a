package permission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"mebel-erp/internal/domain"
	"mebel-erp/internal/observability/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const generationKey = "perm:gen"

// Cache stores effective permission sets in Redis under a generation number.
// Invalidate bumps the generation, which orphans every existing entry at once;
// the TTL only reclaims orphaned memory. Redis failures are logged and treated
// as misses so permission checks keep working from the database.
//
// When a bump fails, entries written before the failed write may still be
// current in Redis. The cache then bypasses itself in this process for one TTL,
// after which every such entry has expired. Other processes keep serving them
// for at most the TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time

	bypassUntil atomic.Int64 // unix nanos
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, now: time.Now}
}

func (c *Cache) bypassed() bool {
	return c.now().UnixNano() < c.bypassUntil.Load()
}

func entryKey(gen int64, userID string) string {
	return fmt.Sprintf("perm:%d:user:%s", gen, userID)
}

func (c *Cache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get returns the cached set and the generation it was looked up under.
// The generation must be passed back to Put.
func (c *Cache) Get(ctx context.Context, userID string) (*domain.EffectivePermissionSet, int64, bool) {
	if c.bypassed() {
		return nil, -1, false
	}

	gen, err := c.generation(ctx)
	if err != nil {
		c.warn(ctx, "get_generation", err)
		return nil, -1, false
	}

	raw, err := c.client.Get(ctx, entryKey(gen, userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn(ctx, "get", err)
		}
		return nil, gen, false
	}

	var set domain.EffectivePermissionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		c.warn(ctx, "decode", err)
		return nil, gen, false
	}
	return &set, gen, true
}

// Put stores set under gen. A negative gen (lookup failed) skips the write.
func (c *Cache) Put(ctx context.Context, gen int64, set *domain.EffectivePermissionSet) {
	if gen < 0 || set == nil || c.bypassed() {
		return
	}
	raw, err := json.Marshal(set)
	if err != nil {
		c.warn(ctx, "encode", err)
		return
	}
	if err := c.client.Set(ctx, entryKey(gen, set.UserID), raw, c.ttl).Err(); err != nil {
		c.warn(ctx, "set", err)
	}
}

// Invalidate moves every reader to a fresh generation. The bump is retried
// once; if both attempts fail the cache is bypassed locally for one TTL and
// the error is returned.
func (c *Cache) Invalidate(ctx context.Context) error {
	err := c.client.Incr(ctx, generationKey).Err()
	if err != nil {
		c.warn(ctx, "invalidate_retry", err)
		err = c.client.Incr(ctx, generationKey).Err()
	}
	if err != nil {
		c.bypassUntil.Store(c.now().Add(c.ttl).UnixNano())
		return fmt.Errorf("invalidate permission cache: %w", err)
	}
	// entries older than this bump are unreachable now
	c.bypassUntil.Store(0)
	return nil
}

func (c *Cache) warn(ctx context.Context, action string, err error) {
	logger.GetLogger(ctx).Warn(ctx, "permission cache unavailable",
		logger.Module("permission_cache"),
		logger.Action(action),
		zap.Error(err),
	)
}
