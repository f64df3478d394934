package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss means no entry exists; the caller must consult the account store.
var ErrMiss = errors.New("role cache miss")

const (
	defaultKeyPrefix = "authz:roles:"
	defaultOpTimeout = 250 * time.Millisecond
)

// RoleCache is a Redis-backed, time-bounded mapping from account identity to
// its ordered role names. It is advisory only.
type RoleCache struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

// NewRoleCache builds a cache over client. Each call is bounded by opTimeout.
func NewRoleCache(client redis.UniversalClient, opTimeout time.Duration) *RoleCache {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &RoleCache{client: client, prefix: defaultKeyPrefix, opTimeout: opTimeout}
}

func (c *RoleCache) key(accountID string) string {
	return c.prefix + accountID
}

// Put overwrites the entry for accountID and starts a fresh TTL window.
// An empty role list only clears the entry.
func (c *RoleCache) Put(ctx context.Context, accountID string, roles []string, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return errors.New("role cache not configured")
	}
	if ttl <= 0 {
		return errors.New("role cache ttl must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	key := c.key(accountID)
	values := make([]any, 0, len(roles))
	for _, role := range roles {
		values = append(values, role)
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
			pipe.PExpire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("role cache put: %w", err)
	}
	return nil
}

// Get returns the cached roles or ErrMiss. Any other error is a transport
// failure and should be handled like a miss.
func (c *RoleCache) Get(ctx context.Context, accountID string) ([]string, error) {
	if c == nil || c.client == nil {
		return nil, ErrMiss
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	roles, err := c.client.LRange(ctx, c.key(accountID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("role cache get: %w", err)
	}
	if len(roles) == 0 {
		return nil, ErrMiss
	}
	return roles, nil
}

// Evict removes the entry for accountID. Evicting a missing entry is not an error.
func (c *RoleCache) Evict(ctx context.Context, accountID string) error {
	if c == nil || c.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.key(accountID)).Err(); err != nil {
		return fmt.Errorf("role cache evict: %w", err)
	}
	return nil
}
