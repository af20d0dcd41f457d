package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"mortgageintake/pkg/domain"
)

// Cache memoises resolved addresses by normalised query.
type Cache interface {
	Get(ctx context.Context, key string) (domain.Address, bool, error)
	Set(ctx context.Context, key string, addr domain.Address) error
}

// MemoryCache is a bounded in-process LRU cache.
type MemoryCache struct {
	lru *lru.Cache[string, domain.Address]
}

// NewMemoryCache constructs an LRU cache holding up to size addresses.
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, domain.Address](size)
	if err != nil {
		return nil, fmt.Errorf("places: lru cache: %w", err)
	}
	return &MemoryCache{lru: c}, nil
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (domain.Address, bool, error) {
	addr, ok := c.lru.Get(key)
	return addr, ok, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, addr domain.Address) error {
	c.lru.Add(key, addr)
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int { return c.lru.Len() }

// RedisCache shares resolved addresses across processes.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to addr. Entries expire after ttl; zero keeps them.
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisCacheFromClient(client, ttl)
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "mortgageintake:address:", ttl: ttl}
}

// Get implements Cache. A missing key is a miss, not an error.
func (c *RedisCache) Get(ctx context.Context, key string) (domain.Address, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Address{}, false, nil
	}
	if err != nil {
		return domain.Address{}, false, fmt.Errorf("redis get: %w", err)
	}
	var addr domain.Address
	if err := json.Unmarshal(data, &addr); err != nil {
		return domain.Address{}, false, fmt.Errorf("decode cached address: %w", err)
	}
	return addr, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, addr domain.Address) error {
	data, err := json.Marshal(addr)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error { return c.client.Close() }
