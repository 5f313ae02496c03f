package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/pipeline-crm/internal/config"
)

// Cache keeps the last computed Summary in Redis.  It is consulted only
// after the caller has been verified, so cached data never bypasses
// authentication.  A nil *Cache, or one without a client, is a no-op.
type Cache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	log *zap.Logger
}

func NewCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{cfg: cfg, rdb: rdb, log: log}
}

func (c *Cache) enabled() bool { return c != nil && c.cfg.Enabled && c.rdb != nil }

func (c *Cache) versionKey() string { return c.cfg.Prefix + ":analytics:version" }

func (c *Cache) key(ver int64) string {
	return c.cfg.Prefix + ":analytics:summary:" + strconv.FormatInt(ver, 10)
}

// Version is the current cache generation.  Summaries are stored under
// their generation, so one computed from data read before an Invalidate
// lands under a key nobody reads again.  ok is false when the cache is
// off or Redis cannot say.
func (c *Cache) Version(ctx context.Context) (ver int64, ok bool) {
	if !c.enabled() {
		return 0, false
	}
	ver, err := c.rdb.Get(ctx, c.versionKey()).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		c.log.Warn("analytics cache version", zap.Error(err))
		return 0, false
	}
	return ver, true
}

// Get returns the summary cached for generation ver, if any.
func (c *Cache) Get(ctx context.Context, ver int64) (Summary, bool) {
	if !c.enabled() {
		return Summary{}, false
	}
	raw, err := c.rdb.Get(ctx, c.key(ver)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("analytics cache get", zap.Error(err))
		}
		return Summary{}, false
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return Summary{}, false
	}
	return s, true
}

// Put stores s for generation ver unless it exceeds MaxBodyBytes.
func (c *Cache) Put(ctx context.Context, ver int64, s Summary) {
	if !c.enabled() {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if c.cfg.MaxBodyBytes > 0 && len(raw) > c.cfg.MaxBodyBytes {
		return
	}
	if err := c.rdb.Set(ctx, c.key(ver), raw, c.cfg.TTL).Err(); err != nil {
		c.log.Warn("analytics cache put", zap.Error(err))
	}
}

// Invalidate starts a new generation.  Called after every client mutation;
// summaries of older generations expire on their TTL.
func (c *Cache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Incr(ctx, c.versionKey()).Err(); err != nil {
		c.log.Warn("analytics cache invalidate", zap.Error(err))
	}
}
