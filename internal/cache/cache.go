// Package cache provides collection existence caches for the provisioner.
//
// A cache only ever records that a collection exists. Losing entries is
// always safe: the provisioner falls back to asking Typesense, and a
// duplicate create is absorbed as a conflict.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ExistenceCache remembers which collections are known to exist
type ExistenceCache interface {
	Exists(ctx context.Context, name string) (bool, error)
	MarkExists(ctx context.Context, name string) error
}

// MemoryCache is a process-local, bounded existence cache. It is safe for
// concurrent use.
type MemoryCache struct {
	entries *lru.Cache[string, struct{}]
}

// NewMemoryCache creates a memory cache holding up to size collection names
func NewMemoryCache(size int) (*MemoryCache, error) {
	entries, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryCache{entries: entries}, nil
}

func (c *MemoryCache) Exists(_ context.Context, name string) (bool, error) {
	return c.entries.Contains(name), nil
}

func (c *MemoryCache) MarkExists(_ context.Context, name string) error {
	c.entries.Add(name, struct{}{})
	return nil
}

// Len returns the number of cached collection names
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}
