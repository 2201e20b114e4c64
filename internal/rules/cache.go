// internal/rules/cache.go
package rules

import (
	"container/list"
	"sync"
	"time"

	"github.com/kidase-app/kidase-rules/internal/types"
)

/*
 * LRU+TTL cache from rule id to compiled AST.
 *
 * The only mutable shared state in the engine, so it carries its own mutex:
 * Get's reposition-on-hit and Set's evict-then-insert are read-modify-write
 * sequences that must be atomic under Go's preemptive scheduler.
 *
 * The cache never hashes rule content. A rule edited in place under the
 * same id keeps evaluating through the stale cached AST until the caller
 * invalidates; persistence code must invalidate in the same transaction as
 * the edit.
 */

// Cache size and TTL defaults; evaluation runs per slide, per presentation
// load, and per date change, so entries are hot for minutes at a time.
const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 5 * time.Minute
)

type cacheEntry struct {
	id       types.RuleID
	rule     *NormalizedRule
	storedAt time.Time
}

// ASTCache is a mutex-guarded LRU with per-entry TTL.
type ASTCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List // front = most recently used
	items   map[types.RuleID]*list.Element
	now     Clock
}

// NewASTCache creates a cache; zero maxSize or ttl select the defaults.
func NewASTCache(maxSize int, ttl time.Duration) *ASTCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ASTCache{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		items:   make(map[types.RuleID]*list.Element),
		now:     time.Now,
	}
}

// WithClock swaps the time source; tests drive TTL expiry with it.
func (c *ASTCache) WithClock(now Clock) *ASTCache {
	c.now = now
	return c
}

// Get returns the cached rule and repositions it as most recently used.
// Expired entries are deleted and reported as misses.
func (c *ASTCache) Get(id types.RuleID) (*NormalizedRule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.items, id)
		return nil, false
	}

	c.order.MoveToFront(elem)
	return entry.rule, true
}

// Has reports whether id is cached and unexpired, without repositioning.
func (c *ASTCache) Has(id types.RuleID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		return false
	}
	return c.now().Sub(elem.Value.(*cacheEntry).storedAt) <= c.ttl
}

// Set stores a compiled rule, evicting exactly the least-recently-used
// entry when at capacity.
func (c *ASTCache) Set(id types.RuleID, rule *NormalizedRule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[id]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.rule = rule
		entry.storedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).id)
		}
	}

	c.items[id] = c.order.PushFront(&cacheEntry{id: id, rule: rule, storedAt: c.now()})
}

// Invalidate removes one entry.
func (c *ASTCache) Invalidate(id types.RuleID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[id]; ok {
		c.order.Remove(elem)
		delete(c.items, id)
	}
}

// Clear removes every entry.
func (c *ASTCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[types.RuleID]*list.Element)
}

// Len returns the number of entries, expired or not.
func (c *ASTCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
