// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache provides the bounded TTL cache shared by the embedding
// client and the vector store client.
//
// Entries expire after a fixed TTL and, when the cache is full, the oldest
// inserted entry is evicted first. Lookups never refresh an entry's position,
// so eviction order is insertion order rather than access order.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits     int64
	Misses   int64
	Size     int
	Capacity int
}

// HitRate returns hits / (hits + misses), or 0 when the cache was never read.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a concurrency-safe TTL + capacity cache.
type Cache[K comparable, V any] struct {
	entries  *expirable.LRU[K, V]
	capacity int
	hits     atomic.Int64
	misses   atomic.Int64
}

// New creates a cache holding at most capacity entries for ttl each.
// A non-positive ttl disables expiry.
func New[K comparable, V any](capacity int, ttl time.Duration) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		entries:  expirable.NewLRU[K, V](capacity, nil, ttl),
		capacity: capacity,
	}
}

// Get returns the cached value for key. Expired entries are misses.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.entries.Peek(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put stores value under key, evicting the oldest entry when full.
func (c *Cache[K, V]) Put(key K, value V) {
	c.entries.Add(key, value)
}

// Invalidate removes a single key.
func (c *Cache[K, V]) Invalidate(key K) {
	c.entries.Remove(key)
}

// Purge removes every entry. Counters are kept.
func (c *Cache[K, V]) Purge() {
	c.entries.Purge()
}

// Len returns the number of entries, including ones not yet reaped after expiry.
func (c *Cache[K, V]) Len() int {
	return c.entries.Len()
}

// Stats returns the current counters.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Size:     c.entries.Len(),
		Capacity: c.capacity,
	}
}
