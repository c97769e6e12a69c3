package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ErrUnknownBackend is returned by Open for an unrecognised backend name.
var ErrUnknownBackend = errors.New("unknown cache backend")

// Cache stores encoded response payloads. Get returns (nil, false, nil) on a miss.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Backend is a Cache with a health probe and a shutdown hook.
type Backend interface {
	Cache
	Ping() error
	Close() error
	Name() string
}

// InMemoryCache implements Cache on an in-process go-cache store.
// Expired entries are evicted by a janitor every cleanupInterval.
type InMemoryCache struct {
	store *gocache.Cache
}

// NewInMemoryCache creates an in-memory cache. A zero cleanupInterval disables the janitor;
// expired entries are still never returned.
func NewInMemoryCache(cleanupInterval time.Duration) *InMemoryCache {
	return &InMemoryCache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get returns a copy of the cached payload if present and not expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	return append([]byte(nil), b...), true, nil
}

// Set stores a copy of value for ttl. A non-positive ttl is treated as a miss-on-next-read.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		c.store.Delete(key)
		return nil
	}
	c.store.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Len returns the number of stored items, including expired ones not yet evicted.
func (c *InMemoryCache) Len() int {
	return c.store.ItemCount()
}

func (c *InMemoryCache) Ping() error { return nil }
func (c *InMemoryCache) Close() error { c.store.Flush(); return nil }
func (c *InMemoryCache) Name() string { return "in_memory" }

// Backend names accepted by Open.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend         string
	CleanupInterval time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	Redis RedisOptions
}

// Open builds the configured backend. Remote backends are not dialled here; callers
// Ping to decide whether to fall back.
func Open(opts Options) (Backend, error) {
	switch opts.Backend {
	case "", BackendInMemory:
		return NewInMemoryCache(opts.CleanupInterval), nil
	case BackendMemcached:
		return NewMemcachedCache(opts.MemcachedAddrs, opts.MemcachedTimeout, opts.MemcachedMaxIdleConns), nil
	case BackendRedis:
		return NewRedisCache(opts.Redis), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
