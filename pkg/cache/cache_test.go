package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU(t *testing.T) {
	t.Run("GetAndPut", func(t *testing.T) {
		c := NewLRU[string](4)

		_, found := c.Get("missing")
		assert.False(t, found)

		c.Put("k1", "v1")
		got, found := c.Get("k1")
		require.True(t, found)
		assert.Equal(t, "v1", got)
	})

	t.Run("EvictsLeastRecentlyUsed", func(t *testing.T) {
		c := NewLRU[int](3)
		c.Put("a", 1)
		c.Put("b", 2)
		c.Put("c", 3)

		// Touch "a" so "b" becomes the least recently used entry.
		_, found := c.Get("a")
		require.True(t, found)

		c.Put("d", 4)

		_, found = c.Get("b")
		assert.False(t, found, "least recently used key should be evicted")
		for _, key := range []string{"a", "c", "d"} {
			_, found := c.Get(key)
			assert.True(t, found, "key %q should survive eviction", key)
		}
	})

	t.Run("SizeNeverExceedsCapacity", func(t *testing.T) {
		const capacity = 5
		c := NewLRU[int](capacity)

		for i := 0; i < capacity*3; i++ {
			c.Put(fmt.Sprintf("key-%d", i), i)
			assert.LessOrEqual(t, c.Len(), capacity)
		}
		assert.Equal(t, capacity, c.Len())
	})

	t.Run("PutExistingKeyRefreshes", func(t *testing.T) {
		c := NewLRU[int](2)
		c.Put("a", 1)
		c.Put("b", 2)
		c.Put("a", 10) // refresh, not insert

		c.Put("c", 3) // evicts "b"

		_, found := c.Get("b")
		assert.False(t, found)
		got, found := c.Get("a")
		require.True(t, found)
		assert.Equal(t, 10, got)
	})

	t.Run("Stats", func(t *testing.T) {
		c := NewLRU[int](2)
		c.Put("a", 1)
		c.Get("a")
		c.Get("a")
		c.Get("nope")

		stats := c.Stats()
		assert.Equal(t, int64(2), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
		assert.Equal(t, 1, stats.Size)
		assert.Equal(t, 2, stats.Capacity)
		assert.InDelta(t, 2.0/3.0, stats.HitRate(), 1e-9)
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		c := NewLRU[int](64)
		var wg sync.WaitGroup

		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					key := fmt.Sprintf("key-%d", i%100)
					c.Put(key, i)
					c.Get(key)
				}
			}(g)
		}
		wg.Wait()

		assert.LessOrEqual(t, c.Len(), 64)
	})
}

func TestTTL(t *testing.T) {
	t.Run("EntryExpiresAfterTTL", func(t *testing.T) {
		c := NewTTL[string](10, time.Minute)
		current := time.Unix(1_700_000_000, 0)
		c.now = func() time.Time { return current }

		c.Put("k", "v")

		got, found := c.Get("k")
		require.True(t, found)
		assert.Equal(t, "v", got)

		// Exactly at insertion+TTL the entry is already a miss.
		current = current.Add(time.Minute)
		_, found = c.Get("k")
		assert.False(t, found)
	})

	t.Run("FreshEntrySurvives", func(t *testing.T) {
		c := NewTTL[string](10, time.Minute)
		current := time.Unix(1_700_000_000, 0)
		c.now = func() time.Time { return current }

		c.Put("k", "v")
		current = current.Add(59 * time.Second)

		_, found := c.Get("k")
		assert.True(t, found)
	})

	t.Run("CapacityEvictsOldestExpiry", func(t *testing.T) {
		c := NewTTL[int](2, time.Minute)
		current := time.Unix(1_700_000_000, 0)
		c.now = func() time.Time { return current }

		c.Put("first", 1)
		current = current.Add(time.Second)
		c.Put("second", 2)
		current = current.Add(time.Second)
		c.Put("third", 3)

		_, found := c.Get("first")
		assert.False(t, found, "entry with the oldest expiry should be evicted")
		_, found = c.Get("second")
		assert.True(t, found)
		_, found = c.Get("third")
		assert.True(t, found)
		assert.LessOrEqual(t, c.Len(), 2)
	})

	t.Run("ExpiredEntriesPurgedBeforeEviction", func(t *testing.T) {
		c := NewTTL[int](2, time.Minute)
		current := time.Unix(1_700_000_000, 0)
		c.now = func() time.Time { return current }

		c.Put("old", 1)
		current = current.Add(2 * time.Minute) // "old" is now expired
		c.Put("a", 2)
		c.Put("b", 3) // capacity pressure purges "old" instead of evicting "a"

		_, found := c.Get("a")
		assert.True(t, found)
		_, found = c.Get("b")
		assert.True(t, found)
	})

	t.Run("Stats", func(t *testing.T) {
		c := NewTTL[int](5, time.Minute)
		c.Put("a", 1)
		c.Get("a")
		c.Get("missing")

		stats := c.Stats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
		assert.Equal(t, 1, stats.Size)
		assert.Equal(t, 5, stats.Capacity)
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		c := NewTTL[int](32, time.Minute)
		var wg sync.WaitGroup

		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					key := fmt.Sprintf("key-%d", i%50)
					c.Put(key, i)
					c.Get(key)
				}
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, c.Len(), 32)
	})
}
