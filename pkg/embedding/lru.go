package embedding

import (
	"container/list"
	"sync"
)

// cacheEntry is one cached embedding with its usage stats.
type cacheEntry struct {
	key  string
	vec  []float32
	hits int
}

// lruCache is a capacity-bounded LRU map from content hash to embedding.
// Eviction order is strict recency: Get and Put both promote the entry.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	onEvict  func(key string)
}

func newLRUCache(capacity int, onEvict func(key string)) *lruCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &lruCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		onEvict:  onEvict,
	}
}

func (c *lruCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	c.order.MoveToFront(elem)
	entry := elem.Value.(*cacheEntry)
	entry.hits++
	return entry.vec, true
}

func (c *lruCache) Put(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).vec = vec
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	elem := c.order.PushFront(&cacheEntry{key: key, vec: vec})
	c.entries[key] = elem
}

// evictOldest removes the least recently used entry. Caller holds the lock,
// so an entry is never observed half-evicted.
func (c *lruCache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}

	entry := oldest.Value.(*cacheEntry)
	c.order.Remove(oldest)
	delete(c.entries, entry.key)

	if c.onEvict != nil {
		c.onEvict(entry.key)
	}
}

func (c *lruCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *lruCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}
