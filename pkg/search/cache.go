package search

import (
	"container/list"
	"sync"
)

// DefaultCacheCapacity is the number of segments whose word timings are kept.
const DefaultCacheCapacity = 4096

// WordCache is an LRU cache of per-segment word start times, keyed by
// segment id. It is safe for concurrent use.
type WordCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

type cacheEntry struct {
	key    string
	starts []float64
}

// NewWordCache creates a cache holding up to capacity segments.
// capacity <= 0 uses DefaultCacheCapacity.
func NewWordCache(capacity int) *WordCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &WordCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the cached word starts of a segment.
func (c *WordCache) Get(segmentID string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[segmentID]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).starts, true
}

// Put stores the word starts of a segment, evicting the least recently used
// segment when full.
func (c *WordCache) Put(segmentID string, starts []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[segmentID]; ok {
		el.Value.(*cacheEntry).starts = starts
		c.order.MoveToFront(el)
		return
	}

	c.items[segmentID] = c.order.PushFront(&cacheEntry{key: segmentID, starts: starts})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached segments.
func (c *WordCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Reset empties the cache. Call it after re-indexing transcripts.
func (c *WordCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}
