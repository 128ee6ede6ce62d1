package cache

import (
	"context"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
)

// InMemoryCache keeps entries in process memory. Used by tests and by the
// export command's dry runs.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ ListCache = (*InMemoryCache)(nil)

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{data: make(map[string]string)}
}

func (c *InMemoryCache) Get(_ context.Context, key string) (io.ReadCloser, error) {
	c.mu.RLock()
	value, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(strings.NewReader(value)), nil
}

func (c *InMemoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *InMemoryCache) Put(_ context.Context, key, value string, opts PutOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[key]; exists && opts.Condition == PutIfNoneMatch {
		return ErrAlreadyExists
	}
	c.data[key] = value
	return nil
}

func (c *InMemoryCache) List(_ context.Context, prefix string, _ string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := []string{}
	for _, key := range slices.Sorted(maps.Keys(c.data)) {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			keys = append(keys, rest)
		}
	}
	return keys, nil
}
