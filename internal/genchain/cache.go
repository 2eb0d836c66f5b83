package genchain

import (
	"sync"
	"time"

	"github.com/sells-group/leadgen-engine/internal/model"
)

// Cache memoizes validated persona batches by normalized search inputs.
// Identical product/industry/country/type requests reuse the generated
// batch instead of spending provider calls.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry

	nowFunc func() time.Time
}

type cacheEntry struct {
	batch     []model.Persona
	expiresAt time.Time
}

// NewCache creates a generation cache with the given entry lifetime.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		nowFunc: time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (c *Cache) WithNow(now func() time.Time) *Cache {
	c.nowFunc = now
	return c
}

// Get returns a copy of the cached batch rebound to the given search,
// or nil on miss. Expired entries are evicted on read.
func (c *Cache) Get(key, searchID string) []model.Persona {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.nowFunc().After(e.expiresAt) {
		delete(c.entries, key)
		return nil
	}

	out := make([]model.Persona, len(e.batch))
	copy(out, e.batch)
	for i := range out {
		out[i].ID = ""
		out[i].SearchID = searchID
	}
	return out
}

// Put stores a validated batch under the given key.
func (c *Cache) Put(key string, batch []model.Persona) {
	if len(batch) == 0 {
		return
	}
	stored := make([]model.Persona, len(batch))
	copy(stored, batch)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		batch:     stored,
		expiresAt: c.nowFunc().Add(c.ttl),
	}
}

// Len returns the number of live entries, evicting expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	return len(c.entries)
}
