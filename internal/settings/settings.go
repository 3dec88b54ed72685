package settings

import (
	"context"
	"sync"
)

// Record is the host settings the engine reads to build session
// credentials. All fields are optional at the storage level; validation
// happens when a session is actually started.
type Record struct {
	Username  string
	ServerURL string
	APIKey    string
}

// Store persists the single settings record.
type Store interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
	Close() error
}

// Cache serves reads from memory until invalidated. There is no TTL:
// the host sends an options_changed notification when settings change,
// and Invalidate makes the next read hit the store again.
type Cache struct {
	store Store

	mu  sync.Mutex
	rec *Record
}

// NewCache wraps a store with an invalidating cache.
func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// Load returns the cached record, fetching lazily on first use.
func (c *Cache) Load(ctx context.Context) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rec != nil {
		return *c.rec, nil
	}
	rec, err := c.store.Load(ctx)
	if err != nil {
		return Record{}, err
	}
	c.rec = &rec
	return rec, nil
}

// Invalidate drops the cached copy.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.rec = nil
	c.mu.Unlock()
}
