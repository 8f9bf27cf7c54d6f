package cache

import (
	"sync"
	"time"
)

// TTL is a fixed-capacity cache whose entries expire a fixed duration after
// insertion. Expired entries are removed lazily on access; capacity pressure
// evicts the entry closest to expiry.
type TTL[V any] struct {
	mutex    sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*ttlEntry[V]

	hits   int64
	misses int64

	now func() time.Time // overridable in tests
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTL creates a TTL cache holding at most capacity entries, each valid for
// ttl after insertion.
func NewTTL[V any](capacity int, ttl time.Duration) *TTL[V] {
	if capacity <= 0 {
		panic("cache: TTL capacity must be positive")
	}
	if ttl <= 0 {
		panic("cache: TTL duration must be positive")
	}
	return &TTL[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*ttlEntry[V], capacity),
		now:      time.Now,
	}
}

// Get returns the value for key if present and not expired. An expired entry
// is removed and reported as a miss.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var zero V
	entry, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.items, key)
		c.misses++
		return zero, false
	}

	c.hits++
	return entry.value, true
}

// Put stores value under key with a fresh expiry. When the cache is full,
// expired entries are purged first; if still full, the entry with the oldest
// expiry is evicted.
func (c *TTL[V]) Put(key string, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()

	if _, ok := c.items[key]; !ok && len(c.items) >= c.capacity {
		c.purgeExpired(now)
		if len(c.items) >= c.capacity {
			c.evictOldest()
		}
	}

	c.items[key] = &ttlEntry[V]{
		value:     value,
		expiresAt: now.Add(c.ttl),
	}
}

// purgeExpired removes every entry whose expiry has passed. Caller holds the
// mutex.
func (c *TTL[V]) purgeExpired(now time.Time) {
	for key, entry := range c.items {
		if !now.Before(entry.expiresAt) {
			delete(c.items, key)
		}
	}
}

// evictOldest removes the entry closest to expiry. With capacities in the
// hundreds a linear scan beats maintaining a heap. Caller holds the mutex.
func (c *TTL[V]) evictOldest() {
	var oldestKey string
	var oldestExpiry time.Time
	first := true

	for key, entry := range c.items {
		if first || entry.expiresAt.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = entry.expiresAt
			first = false
		}
	}
	if !first {
		delete(c.items, oldestKey)
	}
}

// Len returns the current number of entries, including any not yet purged
// expired ones.
func (c *TTL[V]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the cache counters.
func (c *TTL[V]) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		Size:     len(c.items),
		Capacity: c.capacity,
	}
}
