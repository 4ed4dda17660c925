// Package memory is an in-process Cache, used by tests and by the CLI when no
// persistent backend is configured.
package memory

import (
	"context"
	"sync"
)

// Cache is a map guarded by a mutex.
type Cache struct {
	mu   sync.RWMutex
	data map[string]string
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{data: make(map[string]string)}
}

func (c *Cache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *Cache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *Cache) RemoveMany(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *Cache) Close() error { return nil }
