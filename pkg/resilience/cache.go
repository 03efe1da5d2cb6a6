package resilience

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ClassifierCacheKey builds the stable cache key spec §4.1.1 requires: a hash
// of (normalized_message, workflow_summary, phase).
func ClassifierCacheKey(normalizedMessage, workflowSummary, phase string) string {
	h := sha256.New()
	h.Write([]byte(normalizedMessage))
	h.Write([]byte{0})
	h.Write([]byte(workflowSummary))
	h.Write([]byte{0})
	h.Write([]byte(phase))
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	key       string
	value     any
	expiresAt time.Time
}

// ClassifierCache is a bounded LRU with per-entry TTL. Concurrent lookups for
// the same key collapse into a single call via singleflight, grounded on the
// teacher's pkg/limiter locking discipline (one mutex guarding shared
// in-memory state) combined with golang.org/x/sync/singleflight for the
// duplicate-suppression half of spec §4.1.1's caching contract.
type ClassifierCache struct {
	capacity int
	ttl      time.Duration

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List

	group singleflight.Group
}

// NewClassifierCache builds a cache holding at most capacity entries, each
// valid for ttl from insertion.
func NewClassifierCache(capacity int, ttl time.Duration) *ClassifierCache {
	return &ClassifierCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *ClassifierCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(elem)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return entry.value, true
}

// Set inserts or refreshes key, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *ClassifierCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	entry := &cacheEntry{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}
	elem := c.order.PushFront(entry)
	c.entries[key] = elem

	if c.capacity > 0 && c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.removeLocked(oldest)
		}
	}
}

func (c *ClassifierCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	delete(c.entries, entry.key)
	c.order.Remove(elem)
}

// GetOrCompute returns the cached value for key, computing and storing it via
// fn on a miss. Concurrent callers with the same key block on a single
// in-flight fn call instead of each invoking the (expensive, LLM-backed)
// classifier.
func (c *ClassifierCache) GetOrCompute(key string, fn func() (any, error)) (any, error, bool) {
	if v, ok := c.Get(key); ok {
		return v, nil, true
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		result, err := fn()
		if err != nil {
			return nil, err
		}
		c.Set(key, result)
		return result, nil
	})
	return v, err, false
}
