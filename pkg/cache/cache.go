// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a concurrent map whose entries expire a fixed time after they
// were stored. Reads do not extend an entry's lifetime.
//
// Usage:
//
//	c := cache.New[string, Principal](cache.WithExpiry[string, Principal](time.Hour))
//	defer c.Stop()
type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]*entry[V]

	// Max size (0 = unlimited)
	maxSize int

	// TTL expiry (0 = no expiry)
	expiry time.Duration

	stopOnce    sync.Once
	cleanupStop chan struct{}
}

// Option configures a Cache
type Option[K comparable, V any] func(*Cache[K, V])

// WithMaxSize bounds the number of entries. When full, the oldest entry is
// evicted.
func WithMaxSize[K comparable, V any](maxSize int) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.maxSize = maxSize
	}
}

// WithExpiry sets the TTL for cache entries, measured from Set. A
// background goroutine removes expired entries every expiry interval.
func WithExpiry[K comparable, V any](expiry time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.expiry = expiry
	}
}

// New creates a new Cache with the given options.
func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		items:       make(map[K]*entry[V]),
		cleanupStop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.expiry > 0 {
		c.startCleanup()
	}
	return c
}

func (c *Cache[K, V]) startCleanup() {
	go func() {
		ticker := time.NewTicker(c.expiry)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.cleanup()
			case <-c.cleanupStop:
				return
			}
		}
	}()
}

func (c *Cache[K, V]) cleanup() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.items {
		if c.expired(e, now) {
			delete(c.items, k)
		}
	}
}

func (c *Cache[K, V]) expired(e *entry[V], now time.Time) bool {
	return c.expiry > 0 && now.Sub(e.storedAt) >= c.expiry
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (c *Cache[K, V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.cleanupStop)
	})
}

// Get returns the value for key if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || c.expired(e, time.Now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, restarting its TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists && c.maxSize > 0 && len(c.items) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.items[key] = &entry[V]{value: value, storedAt: time.Now()}
}

func (c *Cache[K, V]) evictOldestLocked() {
	var oldestKey K
	var oldest time.Time
	first := true
	for k, e := range c.items {
		if first || e.storedAt.Before(oldest) {
			oldestKey, oldest, first = k, e.storedAt, false
		}
	}
	if !first {
		delete(c.items, oldestKey)
	}
}

// Delete removes a key from the cache.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Size returns the number of stored entries, including expired ones not yet
// cleaned up.
func (c *Cache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all entries from the cache.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	clear(c.items)
	c.mu.Unlock()
}
