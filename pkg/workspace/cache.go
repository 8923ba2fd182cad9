package workspace

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const (
	// DefaultCacheTTL bounds how stale a cached access decision may be
	DefaultCacheTTL = 5 * time.Minute
	// DefaultCacheSize bounds the number of cached (user, workspace) pairs
	DefaultCacheSize = 1000
)

type cacheEntry struct {
	access     Access
	insertedAt time.Time
}

// CacheStats is a point-in-time snapshot of cache behavior
type CacheStats struct {
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// DecisionCache caches unconstrained access decisions keyed by
// (email, workspace) with TTL expiry on read and LRU eviction on insert.
// Entries are snapshots: the cached Access is returned by value and a
// fresh cluster read is forced only once the TTL lapses or the entry is
// invalidated.
type DecisionCache struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, *cacheEntry]

	ttl      time.Duration
	capacity int

	hits      uint64
	misses    uint64
	evictions uint64

	// now is swapped in tests to control entry age
	now func() time.Time
}

// NewDecisionCache creates a cache with the given capacity and TTL,
// falling back to the package defaults for non-positive values.
func NewDecisionCache(capacity int, ttl time.Duration) *DecisionCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	lru, err := simplelru.NewLRU[string, *cacheEntry](capacity, nil)
	if err != nil {
		// Only reachable with capacity <= 0, which is normalized above
		panic(err)
	}
	return &DecisionCache{
		lru:      lru,
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

func cacheKey(email, workspaceName string) string {
	return strings.ToLower(email) + ":" + workspaceName
}

// Get returns the cached unconstrained access for (email, workspaceName).
// An expired entry is removed and reported as a miss. A hit refreshes the
// entry's LRU recency but never its TTL.
func (c *DecisionCache) Get(email, workspaceName string) (Access, bool) {
	key := cacheKey(email, workspaceName)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return Access{}, false
	}
	if c.now().Sub(entry.insertedAt) > c.ttl {
		c.lru.Remove(key)
		c.misses++
		return Access{}, false
	}
	c.hits++
	return entry.access, true
}

// Set stores the unconstrained access for (email, workspaceName),
// resetting the entry's TTL. At capacity the least recently used entry is
// evicted.
func (c *DecisionCache) Set(email, workspaceName string, access Access) {
	key := cacheKey(email, workspaceName)

	c.mu.Lock()
	defer c.mu.Unlock()

	if evicted := c.lru.Add(key, &cacheEntry{access: access, insertedAt: c.now()}); evicted {
		c.evictions++
	}
}

// InvalidateWorkspace removes every cached decision for the named
// workspace and returns how many entries were dropped
func (c *DecisionCache) InvalidateWorkspace(workspaceName string) int {
	suffix := ":" + workspaceName

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.lru.Keys() {
		if strings.HasSuffix(key, suffix) {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// InvalidateUser removes every cached decision for the given email and
// returns how many entries were dropped
func (c *DecisionCache) InvalidateUser(email string) int {
	prefix := strings.ToLower(email) + ":"

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// Clear drops every cached decision
func (c *DecisionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// PruneExpired removes entries past their TTL and returns the count.
// Intended for a periodic sweep; Get already prunes lazily.
func (c *DecisionCache) PruneExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now()
	removed := 0
	for _, key := range c.lru.Keys() {
		entry, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if cutoff.Sub(entry.insertedAt) > c.ttl {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of cache counters
func (c *DecisionCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Size:      c.lru.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
