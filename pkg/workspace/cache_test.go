package workspace

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grantedViewer() Access {
	return grantedAccess(RoleViewer)
}

func TestCacheSetGet(t *testing.T) {
	cache := NewDecisionCache(10, time.Minute)

	_, ok := cache.Get("a@example.com", "ws-1")
	assert.False(t, ok)

	cache.Set("a@example.com", "ws-1", grantedAccess(RoleOwner))

	access, ok := cache.Get("a@example.com", "ws-1")
	require.True(t, ok)
	assert.True(t, access.Granted)
	require.NotNil(t, access.Role)
	assert.Equal(t, RoleOwner, *access.Role)

	// Email lookup is case-insensitive
	_, ok = cache.Get("A@Example.COM", "ws-1")
	assert.True(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := NewDecisionCache(10, time.Minute)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("a@example.com", "ws-1", grantedViewer())

	current = current.Add(59 * time.Second)
	_, ok := cache.Get("a@example.com", "ws-1")
	assert.True(t, ok)

	current = current.Add(2 * time.Minute)
	_, ok = cache.Get("a@example.com", "ws-1")
	assert.False(t, ok)

	// The expired entry was removed, not just skipped
	assert.Zero(t, cache.Stats().Size)
}

func TestCacheSetResetsTTL(t *testing.T) {
	cache := NewDecisionCache(10, time.Minute)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("a@example.com", "ws-1", grantedViewer())
	current = current.Add(45 * time.Second)
	cache.Set("a@example.com", "ws-1", grantedViewer())

	current = current.Add(45 * time.Second)
	_, ok := cache.Get("a@example.com", "ws-1")
	assert.True(t, ok)
}

func TestCacheGetDoesNotRefreshTTL(t *testing.T) {
	cache := NewDecisionCache(10, time.Minute)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("a@example.com", "ws-1", grantedViewer())

	current = current.Add(45 * time.Second)
	_, ok := cache.Get("a@example.com", "ws-1")
	require.True(t, ok)

	current = current.Add(30 * time.Second)
	_, ok = cache.Get("a@example.com", "ws-1")
	assert.False(t, ok)
}

func TestCacheLRUEviction(t *testing.T) {
	cache := NewDecisionCache(3, time.Minute)

	for i := 1; i <= 3; i++ {
		cache.Set("a@example.com", fmt.Sprintf("ws-%d", i), grantedViewer())
	}

	// Touch ws-1 so ws-2 is the least recently used
	_, ok := cache.Get("a@example.com", "ws-1")
	require.True(t, ok)

	cache.Set("a@example.com", "ws-4", grantedViewer())

	_, ok = cache.Get("a@example.com", "ws-2")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = cache.Get("a@example.com", "ws-1")
	assert.True(t, ok, "recently read entry should survive eviction")

	stats := cache.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, uint64(1), stats.Evictions)
}

func TestCacheInvalidateWorkspace(t *testing.T) {
	cache := NewDecisionCache(10, time.Minute)

	cache.Set("a@example.com", "ws-1", grantedViewer())
	cache.Set("b@example.com", "ws-1", grantedViewer())
	cache.Set("a@example.com", "ws-2", grantedViewer())

	removed := cache.InvalidateWorkspace("ws-1")
	assert.Equal(t, 2, removed)

	_, ok := cache.Get("a@example.com", "ws-1")
	assert.False(t, ok)
	_, ok = cache.Get("a@example.com", "ws-2")
	assert.True(t, ok)
}

func TestCacheInvalidateUser(t *testing.T) {
	cache := NewDecisionCache(10, time.Minute)

	cache.Set("a@example.com", "ws-1", grantedViewer())
	cache.Set("a@example.com", "ws-2", grantedViewer())
	cache.Set("b@example.com", "ws-1", grantedViewer())

	removed := cache.InvalidateUser("A@EXAMPLE.COM")
	assert.Equal(t, 2, removed)

	_, ok := cache.Get("b@example.com", "ws-1")
	assert.True(t, ok)
}

func TestCachePruneExpired(t *testing.T) {
	cache := NewDecisionCache(10, time.Minute)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("a@example.com", "ws-1", grantedViewer())
	current = current.Add(2 * time.Minute)
	cache.Set("a@example.com", "ws-2", grantedViewer())

	removed := cache.PruneExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, cache.Stats().Size)

	_, ok := cache.Get("a@example.com", "ws-2")
	assert.True(t, ok)
}

func TestCacheStatsCounters(t *testing.T) {
	cache := NewDecisionCache(10, time.Minute)

	cache.Get("a@example.com", "ws-1")
	cache.Set("a@example.com", "ws-1", grantedViewer())
	cache.Get("a@example.com", "ws-1")

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 10, stats.Capacity)
}

func TestCacheClear(t *testing.T) {
	cache := NewDecisionCache(10, time.Minute)
	cache.Set("a@example.com", "ws-1", grantedViewer())
	cache.Clear()
	assert.Zero(t, cache.Stats().Size)
}
