package cache

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryItem struct {
	data    []byte
	expires time.Time
}

// MemoryCache is an in-process LRU cache. Entries carry their own expiry;
// expired entries are dropped on read.
type MemoryCache struct {
	lru *lru.Cache[string, memoryItem]
}

// NewMemoryCache creates an LRU cache holding at most maxItems entries.
func NewMemoryCache(maxItems int) (*MemoryCache, error) {
	l, err := lru.New[string, memoryItem](maxItems)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{lru: l}, nil
}

func (c *MemoryCache) Get(ctx context.Context, key string, value any) error {
	item, ok := c.lru.Get(key)
	if !ok {
		return ErrNotFound
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		c.lru.Remove(key)
		return ErrNotFound
	}
	return json.Unmarshal(item.data, value)
}

func (c *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	item := memoryItem{data: data}
	if ttl > 0 {
		item.expires = time.Now().Add(ttl)
	}
	c.lru.Add(key, item)
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	item, ok := c.lru.Get(key)
	if !ok {
		return false, nil
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		c.lru.Remove(key)
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) Flush(ctx context.Context) error {
	c.lru.Purge()
	return nil
}

func (c *MemoryCache) Close() error { return nil }
