package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores actor intelligence reports in redis so repeated lookups for
// the same actor do not re-query the model. Redis failures fail open: a
// broken cache degrades to a miss, never to an error.
type Cache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache returns a cache over the given redis client.
func NewCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{redis: client, ttl: ttl, logger: logger}
}

func cacheKey(actor string) string {
	return "forensics:intel:" + strings.ToLower(strings.TrimSpace(actor))
}

// Get returns the cached report for an actor, or (nil, false) on a miss.
func (c *Cache) Get(ctx context.Context, actor string) (*Report, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, cacheKey(actor)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("intel cache read failed, treating as miss", zap.Error(err))
		return nil, false
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		c.logger.Warn("intel cache entry corrupt, treating as miss", zap.Error(err))
		return nil, false
	}
	return &report, true
}

// Set stores a report under the actor key with the cache TTL.
func (c *Cache) Set(ctx context.Context, actor string, report *Report) {
	if c == nil || c.redis == nil || report == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("intel cache encode failed", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, cacheKey(actor), data, c.ttl).Err(); err != nil {
		c.logger.Warn("intel cache write failed", zap.Error(err))
	}
}

// CachedProvider wraps a Provider with the cache.
type CachedProvider struct {
	provider Provider
	cache    *Cache
	logger   *zap.Logger
}

// NewCachedProvider wraps provider with cache. cache may be nil, in which
// case lookups always go to the provider.
func NewCachedProvider(provider Provider, cache *Cache, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{provider: provider, cache: cache, logger: logger}
}

// Name returns the wrapped provider's identifier.
func (p *CachedProvider) Name() string { return p.provider.Name() }

// ActorIntelligence serves from cache when possible and caches fresh results.
func (p *CachedProvider) ActorIntelligence(ctx context.Context, actor string) (*Report, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, nil
	}
	if report, ok := p.cache.Get(ctx, actor); ok {
		p.logger.Debug("intel cache hit", zap.String("actor", actor))
		return report, nil
	}
	report, err := p.provider.ActorIntelligence(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("retrieving intelligence for %q: %w", actor, err)
	}
	if report != nil {
		p.cache.Set(ctx, actor, report)
	}
	return report, nil
}
