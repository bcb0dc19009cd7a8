package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetPut(t *testing.T) {
	c := New[string, int](10, time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 10, stats.Capacity)
	assert.InDelta(t, 0.5, stats.HitRate(), 0.0001)
}

func TestCache_EvictsOldestInserted(t *testing.T) {
	c := New[string, int](2, time.Minute)
	c.Put("first", 1)
	c.Put("second", 2)

	// Reading must not refresh "first".
	_, ok := c.Get("first")
	require.True(t, ok)

	c.Put("third", 3)

	_, ok = c.Get("first")
	assert.False(t, ok, "oldest inserted entry should be evicted")
	_, ok = c.Get("second")
	assert.True(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New[string, string](10, 30*time.Millisecond)
	c.Put("k", "v")

	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCache_InvalidateAndPurge(t *testing.T) {
	c := New[int, int](10, 0)
	for i := 0; i < 5; i++ {
		c.Put(i, i)
	}
	c.Invalidate(0)
	_, ok := c.Get(0)
	assert.False(t, ok)
	assert.Equal(t, 4, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	c := New[string, int](100, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("%d-%d", n, j%10)
				c.Put(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 100)
	assert.Equal(t, int64(20*50), c.Stats().Hits+c.Stats().Misses)
}

func TestStats_HitRateEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.HitRate())
}
