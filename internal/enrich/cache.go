package enrich

import "strings"

// Cache memoizes company-name to Directory-id lookups for the lifetime of
// one run. It is rebuilt for every run and must never outlive one: the
// Directory is externally mutable, so a stale entry could route contacts to
// a deleted record. Each run drives the cache from a single worker, so no
// locking is needed.
type Cache struct {
	ids map[string]string
}

// NewCache creates an empty run-scoped cache.
func NewCache() *Cache {
	return &Cache{ids: make(map[string]string)}
}

// normalizeName collapses case and surrounding whitespace so "Acme Corp"
// and " acme corp " share one entry.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup returns the cached Directory id for a company name.
func (c *Cache) Lookup(name string) (string, bool) {
	id, ok := c.ids[normalizeName(name)]
	return id, ok
}

// Store records a resolved id under the normalized name.
func (c *Cache) Store(name, id string) {
	c.ids[normalizeName(name)] = id
}

// Len reports the number of distinct companies resolved this run.
func (c *Cache) Len() int {
	return len(c.ids)
}
