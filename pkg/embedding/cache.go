package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/patrickmn/go-cache"

	irisredis "github.com/Ramsey-B/iris/pkg/redis"
)

// Cache stores vectors by key
type Cache interface {
	Get(ctx context.Context, key string) ([]float64, bool)
	Set(ctx context.Context, key string, vector []float64)
}

// CacheKey derives a stable key from the model name and the text
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// LocalCache is an in-process TTL cache
type LocalCache struct {
	cache *cache.Cache
}

// NewLocalCache creates a local cache with the given TTL
func NewLocalCache(ttl time.Duration) *LocalCache {
	return &LocalCache{cache: cache.New(ttl, ttl*2)}
}

func (c *LocalCache) Get(_ context.Context, key string) ([]float64, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	vector, ok := v.([]float64)
	return vector, ok
}

func (c *LocalCache) Set(_ context.Context, key string, vector []float64) {
	c.cache.Set(key, vector, cache.DefaultExpiration)
}

// ItemCount returns the number of cached vectors
func (c *LocalCache) ItemCount() int {
	return c.cache.ItemCount()
}

// KeyValueStore is the subset of the redis client the shared cache needs
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
}

// SharedCache keeps vectors in redis so replicas share embeddings
type SharedCache struct {
	store  KeyValueStore
	prefix string
	ttl    time.Duration
	logger ectologger.Logger
}

// NewSharedCache creates a redis-backed cache
func NewSharedCache(store KeyValueStore, ttl time.Duration, logger ectologger.Logger) *SharedCache {
	return &SharedCache{
		store:  store,
		prefix: "iris:embedding:",
		ttl:    ttl,
		logger: logger,
	}
}

func (c *SharedCache) Get(ctx context.Context, key string) ([]float64, bool) {
	raw, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		if !errors.Is(err, irisredis.ErrNotFound) {
			c.logger.WithContext(ctx).WithError(err).Warn("Failed to read embedding from shared cache")
		}
		return nil, false
	}

	var vector []float64
	if err := json.Unmarshal(raw, &vector); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Discarding malformed cached embedding")
		return nil, false
	}
	return vector, true
}

func (c *SharedCache) Set(ctx context.Context, key string, vector []float64) {
	raw, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.prefix+key, raw, c.ttl); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Failed to write embedding to shared cache")
	}
}
