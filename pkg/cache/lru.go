package cache

import (
	"container/list"
	"sync"
)

// LRU is a fixed-capacity cache that evicts the least recently used entry
// when full. Every successful Get refreshes the entry's recency.
type LRU[V any] struct {
	mutex    sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[string]*list.Element

	hits   int64
	misses int64
}

type lruEntry[V any] struct {
	key   string
	value V
}

// NewLRU creates an LRU cache holding at most capacity entries. Capacity must
// be positive.
func NewLRU[V any](capacity int) *LRU[V] {
	if capacity <= 0 {
		panic("cache: LRU capacity must be positive")
	}
	return &LRU[V]{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the value for key if present, marking it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}

	c.hits++
	c.order.MoveToFront(elem)
	return elem.Value.(*lruEntry[V]).value, true
}

// Put stores value under key. If the key already exists its value is replaced
// and its recency refreshed; otherwise, when the cache is full, the least
// recently used entry is evicted first.
func (c *LRU[V]) Put(key string, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry[V]).key)
		}
	}

	c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})
}

// Len returns the current number of entries.
func (c *LRU[V]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *LRU[V]) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		Size:     c.order.Len(),
		Capacity: c.capacity,
	}
}
