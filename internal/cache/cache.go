package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/hospital-review-service/internal/models"
)

// Cache stores review entries by key. Freshness is decided by the caller from
// CacheEntry.FetchedAt; ttl only bounds how long a backend may keep the entry.
type Cache interface {
	Get(ctx context.Context, key string) (models.CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry models.CacheEntry, ttl time.Duration) error
}

// InMemoryCache implements Cache with a map guarded by a RWMutex.
// Entries are never evicted; ttl is ignored.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]models.CacheEntry
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]models.CacheEntry),
	}
}

// Get returns (entry, true, nil) on hit and (zero, false, nil) on miss.
// The returned Reviews slice is a copy.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return models.CacheEntry{}, false, nil
	}
	entry.Reviews = cloneReviews(entry.Reviews)
	return entry, true, nil
}

// Set replaces the entry for key.
func (c *InMemoryCache) Set(ctx context.Context, key string, entry models.CacheEntry, ttl time.Duration) error {
	entry.Reviews = cloneReviews(entry.Reviews)
	c.mu.Lock()
	c.data[key] = entry
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func cloneReviews(in []models.Review) []models.Review {
	if in == nil {
		return nil
	}
	out := make([]models.Review, len(in))
	copy(out, in)
	return out
}
