// Package cache provides the content-addressed render cache with strict
// LRU eviction.
//
// Keys are derived from the source path plus a SHA-256 hash of the source
// content (see types.CacheKey), which keeps the cache correct under file
// renames and under external edits that restore prior content. Capacity is
// a fixed entry count set at construction and is never exceeded. Error
// results are never stored, so transient failures are retried on the next
// edit instead of being memoized.
package cache

import (
	"sync"
	"sync/atomic"

	"diaview/internal/types"
)

// RenderCache caches render results with LRU eviction.
type RenderCache struct {
	entries  map[string]*entry
	mutex    sync.Mutex
	capacity int
	// LRU doubly-linked list with dummy head and tail
	head *entry
	tail *entry
	// Statistics tracking (atomic for cheap reads)
	hits   int64
	misses int64
}

// entry is one cached render result.
type entry struct {
	key    string
	result types.RenderResult
	prev   *entry
	next   *entry
}

// New creates a render cache holding at most capacity entries. Capacity
// values below one are clamped to one.
func New(capacity int) *RenderCache {
	if capacity < 1 {
		capacity = 1
	}

	c := &RenderCache{
		entries:  make(map[string]*entry, capacity),
		capacity: capacity,
	}

	c.head = &entry{}
	c.tail = &entry{}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get retrieves a result from the cache. A hit moves the key to the
// most-recently-used position before returning.
func (c *RenderCache) Get(key string) (types.RenderResult, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, exists := c.entries[key]
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return types.RenderResult{}, false
	}

	c.moveToFront(e)
	atomic.AddInt64(&c.hits, 1)
	return e.result, true
}

// Set stores a result in the cache. Setting an existing key updates its
// content and refreshes recency. Inserting beyond capacity evicts the
// single least-recently-used entry. Error results are dropped so failures
// are never memoized.
func (c *RenderCache) Set(key string, result types.RenderResult) {
	if result.IsError() {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, exists := c.entries[key]; exists {
		existing.result = result
		c.moveToFront(existing)
		return
	}

	if len(c.entries) >= c.capacity {
		lru := c.tail.prev
		c.removeFromList(lru)
		delete(c.entries, lru.key)
	}

	e := &entry{key: key, result: result}
	c.entries[key] = e
	c.addToFront(e)
}

// Clear removes all entries and resets statistics.
func (c *RenderCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*entry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Len returns the number of cached entries.
func (c *RenderCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// Capacity returns the fixed capacity.
func (c *RenderCache) Capacity() int {
	return c.capacity
}

// Hits returns the number of cache hits.
func (c *RenderCache) Hits() int64 {
	return atomic.LoadInt64(&c.hits)
}

// Misses returns the number of cache misses.
func (c *RenderCache) Misses() int64 {
	return atomic.LoadInt64(&c.misses)
}

// LRU doubly-linked list operations
func (c *RenderCache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *RenderCache) removeFromList(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *RenderCache) moveToFront(e *entry) {
	c.removeFromList(e)
	c.addToFront(e)
}
