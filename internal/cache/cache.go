// Package cache wraps Redis as the revocation cache: the refresh-token
// whitelist and the access-token blacklist share the same key/value
// mechanism with per-entry TTLs. The cache is an accelerator in front of
// the persistent ledger, never the source of truth; callers treat read
// errors as misses and fall back to the ledger.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes for the two disjoint uses of the cache.
const (
	// RefreshKeyPrefix + "<userID>:<tokenID>" maps to the expected token hash.
	RefreshKeyPrefix = "refresh:"
	// BlacklistKeyPrefix + "<sha256(accessToken)>" maps to a sentinel value.
	BlacklistKeyPrefix = "blacklist:access:"
)

// RefreshKey builds the whitelist key for a (user, token identifier) pair.
func RefreshKey(userID, tokenID string) string {
	return RefreshKeyPrefix + userID + ":" + tokenID
}

// RefreshKeyPattern matches every whitelist entry belonging to a user.
func RefreshKeyPattern(userID string) string {
	return RefreshKeyPrefix + userID + ":*"
}

// BlacklistKey builds the blacklist key for an access token digest.
func BlacklistKey(tokenDigest string) string {
	return BlacklistKeyPrefix + tokenDigest
}

// Cache is a thin client over Redis with per-entry expiry.
type Cache struct {
	client *redis.Client
}

// New creates a cache over the given Redis client.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Get returns the value for key. A missing key is (_, false, nil), not an
// error; errors indicate transient store failure.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return value, true, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// DeletePattern removes every key matching the glob pattern, scanning
// incrementally to avoid blocking Redis on large keyspaces.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %s: %w", pattern, err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete pattern %s: %w", pattern, err)
	}
	return nil
}

// Exists reports whether key is present.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists %s: %w", key, err)
	}
	return n == 1, nil
}

// Expire resets the TTL on an existing key.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("cache expire %s: %w", key, err)
	}
	return nil
}

// Ping verifies connectivity, for readiness checks.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
