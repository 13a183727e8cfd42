package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const listingKeySuffix = "_latestActivity_OpenGov"

// ListingCacheKey returns the cache key for a network's latest activity listing
func ListingCacheKey(network string) string {
	return network + listingKeySuffix
}

// ListingCache stores serialized latest activity listings in Redis
type ListingCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewListingCache creates a listing cache. A zero ttl stores entries without expiry.
func NewListingCache(r *RedisCache, ttl time.Duration) *ListingCache {
	return &ListingCache{redis: r, ttl: ttl}
}

// Get returns the raw cached listing and whether the key was present
func (c *ListingCache) Get(ctx context.Context, network string) (string, bool, error) {
	val, err := c.redis.Client().Get(ctx, ListingCacheKey(network)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read listing cache: %w", err)
	}
	return val, true, nil
}

// Set stores a serialized listing
func (c *ListingCache) Set(ctx context.Context, network, payload string) error {
	if err := c.redis.Client().Set(ctx, ListingCacheKey(network), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write listing cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached listing for a network
func (c *ListingCache) Invalidate(ctx context.Context, network string) error {
	if err := c.redis.Client().Del(ctx, ListingCacheKey(network)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate listing cache: %w", err)
	}
	return nil
}
