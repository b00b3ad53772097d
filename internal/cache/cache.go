// Package cache keeps users in redis as JSON under "user:<id>" and "user:<email>" keys
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/authkeeper/internal/models"
)

var ErrCacheMiss = errors.New("cache miss")

const userPrefix = "user"

type UserCache struct {
	client redis.UniversalClient
	prefix string
}

func NewUserCache(client redis.UniversalClient) *UserCache {
	return &UserCache{client: client, prefix: userPrefix}
}

func (c *UserCache) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

// Get user stored under the key (user id or email)
// Returns ErrCacheMiss if nothing stored
func (c *UserCache) Get(ctx context.Context, key string) (models.User, error) {
	var user models.User

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return user, ErrCacheMiss
	case err != nil:
		return user, fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, &user); err != nil {
		return user, fmt.Errorf("cache decode error: %w", err)
	}

	return user, nil
}

// Set stores the user under every given key with the same ttl
func (c *UserCache) Set(ctx context.Context, user models.User, ttl time.Duration, keys ...string) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("cache encode error: %w", err)
	}

	_, err = c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Set(ctx, c.key(k), data, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}

	return nil
}

// Delete keys. Missing keys are not an error
func (c *UserCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}

	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}
