package storage

import (
	"container/list"
	"sync"

	"github.com/arbors/arbors"
)

// cacheKey identifies one stored batch (spec §6.2 key shape).
type cacheKey struct {
	name       string
	generation uint64
	batchIndex int
}

type cacheEntry struct {
	key   cacheKey
	arbor *arbors.Arbor
}

// batchCache caches full decodes only (spec §4.6 "A projection-decoded
// batch is never cached, because its shape is query-specific and caching
// would produce surprising panics on subsequent full access"). Eviction is
// plain LRU, bounded by EngineOptions.CacheCapacity.
type batchCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[cacheKey]*list.Element
}

func newBatchCache(capacity int) *batchCache {
	return &batchCache{capacity: capacity, ll: list.New(), items: make(map[cacheKey]*list.Element)}
}

func (c *batchCache) get(k cacheKey) (*arbors.Arbor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[k]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).arbor, true
}

func (c *batchCache) put(k cacheKey, a *arbors.Arbor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[k]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*cacheEntry).arbor = a
		return
	}
	el := c.ll.PushFront(&cacheEntry{key: k, arbor: a})
	c.items[k] = el
	if c.capacity > 0 && c.ll.Len() > c.capacity {
		back := c.ll.Back()
		if back != nil {
			c.ll.Remove(back)
			delete(c.items, back.Value.(*cacheEntry).key)
		}
	}
}

// invalidateName drops every cached batch for name, used when a new
// generation is committed so stale-generation entries cannot linger
// (generation is part of the key, so this is a defensive sweep rather than
// a correctness requirement — stale keys would simply never be requested
// again, but leaving them would waste cache capacity indefinitely).
func (c *batchCache) invalidateName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, el := range c.items {
		if k.name == name {
			c.ll.Remove(el)
			delete(c.items, k)
		}
	}
}
