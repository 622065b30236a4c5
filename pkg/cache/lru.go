package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache is a bounded in-memory cache; the least recently used entry is evicted
// once MaxEntries is reached.
type LRUCache struct {
	entries *lru.Cache[string, *cacheEntry]
}

// NewLRUCache creates a cache holding at most size entries
func NewLRUCache(size int) (*LRUCache, error) {
	entries, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &LRUCache{entries: entries}, nil
}

// Set stores a value in the cache with the specified TTL
func (l *LRUCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	l.entries.Add(key, newEntry(data, ttl))
	return nil
}

// Get retrieves a value from the cache and unmarshals it into dest
func (l *LRUCache) Get(ctx context.Context, key string, dest interface{}) error {
	entry, ok := l.entries.Get(key)
	if !ok {
		return ErrCacheNotFound
	}
	if entry.expired(time.Now()) {
		l.entries.Remove(key)
		return ErrCacheExpired
	}
	return json.Unmarshal(entry.value, dest)
}

// Delete removes a key
func (l *LRUCache) Delete(ctx context.Context, key string) error {
	l.entries.Remove(key)
	return nil
}

// Len returns the number of stored entries
func (l *LRUCache) Len() int {
	return l.entries.Len()
}

// Close drops all entries
func (l *LRUCache) Close() error {
	l.entries.Purge()
	return nil
}
