package claims

import "sync"

// Cache holds the claims a metadata server has seen, keyed by subject
// (the component/provider/host public key a claim was issued for). It
// backs the get_claims control operation (spec.md §4.4: "list of all
// cached claims") and lets internal/host resolve a provider's contract id
// without re-decoding its JWT on every start_provider.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Claims
}

// NewCache builds an empty Cache.
func NewCache() *Cache {
	return &Cache{items: make(map[string]*Claims)}
}

// Put records c under its Sub. A later Put for the same subject replaces
// the prior entry.
func (c *Cache) Put(claim *Claims) {
	if claim == nil || claim.Sub == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[claim.Sub] = claim
}

// Get returns the cached claims for subject, if any.
func (c *Cache) Get(subject string) (*Claims, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	claim, ok := c.items[subject]
	return claim, ok
}

// Delete removes subject's cached claims, if present.
func (c *Cache) Delete(subject string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, subject)
}

// List returns every cached claim, in no particular order.
func (c *Cache) List() []*Claims {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Claims, 0, len(c.items))
	for _, claim := range c.items {
		out = append(out, claim)
	}
	return out
}
