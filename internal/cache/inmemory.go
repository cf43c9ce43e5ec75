package cache

import (
	"context"
	"strings"
	"time"

	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/logger"
	goCache "github.com/patrickmn/go-cache"
)

const (
	DefaultExpiration      = 30 * time.Minute
	DefaultCleanupInterval = 1 * time.Hour
)

// InMemoryCache implements Cache on top of github.com/patrickmn/go-cache.
// Each instance is independent; construct one per consumer that needs
// isolation.
type InMemoryCache struct {
	cache   *goCache.Cache
	enabled bool
}

var _ Cache = (*InMemoryCache)(nil)

// NewInMemoryCache builds the shared application cache from config
func NewInMemoryCache(cfg *config.Configuration, log *logger.Logger) Cache {
	expiration := cfg.Cache.DefaultTTL
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	cleanup := cfg.Cache.CleanupInterval
	if cleanup <= 0 {
		cleanup = DefaultCleanupInterval
	}
	log.Infow("initializing in-memory cache",
		"enabled", cfg.Cache.Enabled,
		"default_ttl", expiration,
	)
	return New(cfg.Cache.Enabled, expiration, cleanup)
}

// New creates a cache with explicit settings
func New(enabled bool, expiration, cleanup time.Duration) *InMemoryCache {
	return &InMemoryCache{
		cache:   goCache.New(expiration, cleanup),
		enabled: enabled,
	}
}

func ttl(expiration time.Duration) time.Duration {
	if expiration == 0 {
		return goCache.DefaultExpiration
	}
	return expiration
}

func (c *InMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.enabled {
		return
	}
	c.cache.Set(key, value, ttl(expiration))
}

// Add always works, even with the cache disabled, since callers use it for
// correctness rather than speed.
func (c *InMemoryCache) Add(_ context.Context, key string, value interface{}, expiration time.Duration) bool {
	return c.cache.Add(key, value, ttl(expiration)) == nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) {
	c.cache.Delete(key)
}

func (c *InMemoryCache) DeleteByPrefix(_ context.Context, prefix string) {
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
		}
	}
}

func (c *InMemoryCache) Flush(_ context.Context) {
	c.cache.Flush()
}
