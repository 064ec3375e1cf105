package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// LRU is a thread-safe map bounded to a fixed number of entries. The least
// recently used entry is evicted first.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	table    map[K]*list.Element
	lru      *list.List // For eviction ordering

	// Statistics
	hits   atomic.Uint64
	misses atomic.Uint64
}

// lruEntry is the entry stored in the LRU list.
type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

// getEntry extracts an lruEntry from a list element.
// The type assertion is safe because the list only ever stores *lruEntry.
func getEntry[K comparable, V any](elem *list.Element) *lruEntry[K, V] {
	entry, _ := elem.Value.(*lruEntry[K, V])
	return entry
}

// NewLRU creates an LRU holding at most capacity entries. A capacity below
// one disables the memo: Put is a no-op.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	return &LRU[K, V]{
		capacity: capacity,
		table:    make(map[K]*list.Element),
		lru:      list.New(),
	}
}

// Put stores value under key and marks it most recently used.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity < 1 {
		return
	}
	if elem, ok := c.table[key]; ok {
		getEntry[K, V](elem).value = value
		c.lru.MoveToFront(elem)
		return
	}
	for c.lru.Len() >= c.capacity {
		c.evictOne()
	}
	c.table[key] = c.lru.PushFront(&lruEntry[K, V]{key: key, value: value})
}

// Get returns the value stored under key.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.table[key]; ok {
		c.lru.MoveToFront(elem)
		c.hits.Add(1)
		return getEntry[K, V](elem).value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Remove drops key from the memo.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.table[key]; ok {
		c.removeEntry(elem)
	}
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table)
}

// Hits returns the number of successful lookups.
func (c *LRU[K, V]) Hits() uint64 {
	return c.hits.Load()
}

// Misses returns the number of failed lookups.
func (c *LRU[K, V]) Misses() uint64 {
	return c.misses.Load()
}

// HitRate returns the hit rate (0.0 to 1.0).
func (c *LRU[K, V]) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

// evictOne evicts the least recently used entry.
// Must be called with mu held.
func (c *LRU[K, V]) evictOne() {
	if e := c.lru.Back(); e != nil {
		c.removeEntry(e)
	}
}

// removeEntry removes an entry from the memo.
// Must be called with mu held.
func (c *LRU[K, V]) removeEntry(elem *list.Element) {
	delete(c.table, getEntry[K, V](elem).key)
	c.lru.Remove(elem)
}
