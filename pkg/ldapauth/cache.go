// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ldapauth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/LeeDigitalWorks/ldapauth/pkg/cache"
	"github.com/LeeDigitalWorks/ldapauth/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// MemoryCache keeps successful authentications in process memory.
type MemoryCache struct {
	c *cache.Cache[string, Principal]
}

// NewMemoryCache returns a cache whose entries live for ttl. maxSize of 0
// means unbounded.
func NewMemoryCache(ttl time.Duration, maxSize int) *MemoryCache {
	return &MemoryCache{
		c: cache.New(
			cache.WithExpiry[string, Principal](ttl),
			cache.WithMaxSize[string, Principal](maxSize),
		),
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) (Principal, bool) {
	return m.c.Get(key)
}

func (m *MemoryCache) Set(_ context.Context, key string, p Principal) {
	m.c.Set(key, p)
}

func (m *MemoryCache) Len() int {
	return m.c.Size()
}

func (m *MemoryCache) Stop() {
	m.c.Stop()
}

// RedisCache shares successful authentications between instances. Redis
// failures are logged and treated as misses. A ttl of zero or less disables
// it: nothing is stored and every lookup misses.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) (Principal, bool) {
	if r.ttl <= 0 {
		return Principal{}, false
	}
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Ctx(ctx).Warn().Err(err).Msg("auth cache lookup failed")
		}
		return Principal{}, false
	}
	var p Principal
	if err := json.Unmarshal(data, &p); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("discarding malformed auth cache entry")
		return Principal{}, false
	}
	return p, true
}

func (r *RedisCache) Set(ctx context.Context, key string, p Principal) {
	// go-redis treats a zero expiration as "keep forever".
	if r.ttl <= 0 {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("auth cache store failed")
	}
}
