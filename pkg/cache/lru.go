// Package cache provides a small in-memory LRU for rendered report
// artifacts so repeated downloads do not re-render the same report.
package cache

import (
	"container/list"
	"sync"
)

// ArtifactCache is a fixed-capacity LRU keyed by an artifact reference
// (job id plus format). Safe for concurrent use.
type ArtifactCache struct {
	mu       sync.Mutex
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
}

type cacheEntry struct {
	key  string
	data []byte
}

// NewArtifactCache creates a cache holding at most capacity artifacts.
// A capacity below 1 is rounded up to 1.
func NewArtifactCache(capacity int) *ArtifactCache {
	if capacity < 1 {
		capacity = 1
	}
	return &ArtifactCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached artifact bytes and marks the entry as recently used.
func (c *ArtifactCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		return entry.data, true
	}
	return nil, false
}

// Put stores artifact bytes, evicting the least recently used entry when full.
func (c *ArtifactCache) Put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.data = data
		return
	}

	if c.lru.Len() >= c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			oldEntry := oldest.Value.(*cacheEntry)
			delete(c.cache, oldEntry.key)
		}
	}

	entry := &cacheEntry{key: key, data: data}
	elem := c.lru.PushFront(entry)
	c.cache[key] = elem
}

// Invalidate drops every cached artifact whose key has the given prefix.
// Used when a job is deleted so stale renderings cannot be served.
func (c *ArtifactCache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.cache {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.lru.Remove(elem)
			delete(c.cache, key)
		}
	}
}

// Len reports the number of cached artifacts.
func (c *ArtifactCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
