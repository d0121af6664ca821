// Copyright (c) 2026 Identra. All rights reserved.

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/identra/identra/internal/platform/constants"
	"github.com/identra/identra/internal/users/auth"
)

// # Profile Cache

// ErrCacheMiss signals the profile is not cached; callers fall through to
// the repository.
var ErrCacheMiss = errors.New("profile cache miss")

// ProfileCache is a read-through cache for user profiles keyed by user ID.
type ProfileCache interface {
	// Get returns the cached profile or [ErrCacheMiss].
	Get(ctx context.Context, userID string) (*auth.User, error)

	// Set stores the profile under the configured TTL.
	Set(ctx context.Context, user *auth.User) error

	// Invalidate drops the cached profile after a mutation.
	Invalidate(ctx context.Context, userID string) error
}

// RedisProfileCache implements [ProfileCache] on Redis with JSON values.
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProfileCache creates a Redis-backed [ProfileCache].
func NewProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

func profileKey(userID string) string {
	return constants.RedisPrefixUserCache + userID
}

// Get returns the cached profile or [ErrCacheMiss].
func (cache *RedisProfileCache) Get(ctx context.Context, userID string) (*auth.User, error) {
	payload, err := cache.client.Get(ctx, profileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis_profile_get_failed: %w", err)
	}

	var user auth.User
	if err := json.Unmarshal(payload, &user); err != nil {
		// A corrupt entry behaves like a miss; the next Set overwrites it.
		return nil, ErrCacheMiss
	}
	return &user, nil
}

// Set stores the profile under the configured TTL.
func (cache *RedisProfileCache) Set(ctx context.Context, user *auth.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("redis_profile_encode_failed: %w", err)
	}
	if err := cache.client.Set(ctx, profileKey(user.ID), payload, cache.ttl).Err(); err != nil {
		return fmt.Errorf("redis_profile_set_failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached profile after a mutation.
func (cache *RedisProfileCache) Invalidate(ctx context.Context, userID string) error {
	if err := cache.client.Del(ctx, profileKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis_profile_invalidate_failed: %w", err)
	}
	return nil
}
