// Package tokens keeps the set of known API keys in memory.
package tokens

import (
	"sync"

	"rendercv-service/internal/domain"
)

// Scope lists what a key may be used for. An empty scope allows everything.
type Scope map[string]bool

func (s Scope) Allows(name string) bool {
	return len(s) == 0 || s[name] || s["*"]
}

type Entry struct {
	RateLimit int
	Scope     Scope
}

type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps the whole key set. The cache counts as ready afterwards,
// even when m is empty.
func (c *Cache) Replace(m map[string]Entry) {
	next := make(map[string]Entry, len(m))
	for k, v := range m {
		next[k] = v
	}
	c.mu.Lock()
	c.entries = next
	c.mu.Unlock()
}

func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries != nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Lookup(token string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[token]
	return e, ok
}

// Validate reports whether token may use scope.
func (c *Cache) Validate(token, scope string) error {
	if !c.Ready() {
		return domain.ErrTokenStoreNotReady
	}
	e, ok := c.Lookup(token)
	if !ok || !e.Scope.Allows(scope) {
		return domain.ErrInvalidAPIKey
	}
	return nil
}

// RateLimit returns the per-interval limit of token; 0 means unlimited or
// unknown.
func (c *Cache) RateLimit(token string) int {
	e, _ := c.Lookup(token)
	return e.RateLimit
}
