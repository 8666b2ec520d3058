package repository

import (
	"context"
	"sync"
	"time"
)

const DefaultCacheTTL = 300 * time.Second

type cacheEntry struct {
	data    []byte
	expires time.Time
}

// CachedDocuments puts a short-lived read cache in front of a slow backend.
// Writes drop the cached copy of the written document.
type CachedDocuments struct {
	next Documents
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCachedDocuments(next Documents, ttl time.Duration) *CachedDocuments {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedDocuments{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachedDocuments) Load(ctx context.Context, name string) ([]byte, error) {
	c.mu.Lock()
	entry, ok := c.entries[name]
	c.mu.Unlock()
	if ok && c.now().Before(entry.expires) {
		return append([]byte(nil), entry.data...), nil
	}

	data, err := c.next.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[name] = cacheEntry{data: append([]byte(nil), data...), expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return data, nil
}

func (c *CachedDocuments) Save(ctx context.Context, name string, data []byte) error {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
	return c.next.Save(ctx, name, data)
}

// InvalidateCache drops every cached document.
func (c *CachedDocuments) InvalidateCache() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *CachedDocuments) Close() error {
	return c.next.Close()
}
