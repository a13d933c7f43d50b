package search

import (
	"container/list"
	"sync"
	"time"
)

// resultCache is a TTL-bounded LRU over full search results, keyed by the
// normalized query configuration. Entries are invalidated only by capacity
// eviction or TTL expiry, never by content mutation: stale reads inside the
// TTL window are an accepted trade-off.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	entries  map[string]*list.Element
}

type cachedResults struct {
	key      string
	results  []Result
	storedAt time.Time
}

func newResultCache(capacity int, ttl time.Duration) *resultCache {
	if capacity <= 0 {
		capacity = 100
	}
	return &resultCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (c *resultCache) Get(key string) ([]Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*cachedResults)
	if c.ttl > 0 && time.Since(entry.storedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}

	c.order.MoveToFront(elem)
	out := make([]Result, len(entry.results))
	copy(out, entry.results)
	return out, true
}

func (c *resultCache) Put(key string, results []Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]Result, len(results))
	copy(stored, results)

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cachedResults)
		entry.results = stored
		entry.storedAt = time.Now()
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cachedResults).key)
		}
	}

	elem := c.order.PushFront(&cachedResults{key: key, results: stored, storedAt: time.Now()})
	c.entries[key] = elem
}

func (c *resultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
