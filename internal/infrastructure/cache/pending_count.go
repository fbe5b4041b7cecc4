package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/garyjia/conveyance-bills/internal/application/port"
)

const (
	pendingVersionKey = "bills:pending:version"
	pendingKeyPrefix  = "bills:pending"
	defaultPendingTTL = 5 * time.Minute
)

// PendingCountCache keeps per-user pending counts under a global version.
// Invalidate bumps the version, so every previously written count becomes
// unreachable at once and expires on its own TTL.
type PendingCountCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPendingCountCache creates the cache. A zero ttl uses five minutes.
func NewPendingCountCache(client *redis.Client, ttl time.Duration) *PendingCountCache {
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &PendingCountCache{client: client, ttl: ttl}
}

// Get returns the cached count and whether it was present
func (c *PendingCountCache) Get(ctx context.Context, userID string) (int, bool, error) {
	key, err := c.key(ctx, userID)
	if err != nil {
		return 0, false, err
	}

	n, err := c.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cache: get pending count: %w", err)
	}
	return n, true, nil
}

// Set stores the count for userID under the current version
func (c *PendingCountCache) Set(ctx context.Context, userID string, count int) error {
	key, err := c.key(ctx, userID)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, count, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set pending count: %w", err)
	}
	return nil
}

// Invalidate drops every cached count
func (c *PendingCountCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, pendingVersionKey).Err(); err != nil {
		return fmt.Errorf("cache: bump pending version: %w", err)
	}
	return nil
}

func (c *PendingCountCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, pendingVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: get pending version: %w", err)
	}
	return ver, nil
}

func (c *PendingCountCache) key(ctx context.Context, userID string) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return pendingKeyPrefix + ":" + strconv.FormatInt(ver, 10) + ":" + userID, nil
}

var _ port.PendingCountCache = (*PendingCountCache)(nil)
