package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process Store.  Data is lost when the process exits.
type Memory struct {
	cache *gocache.Cache
}

// NewMemory returns a new *Memory that purges expired items every
// cleanupInterval.
func NewMemory(cleanupInterval time.Duration) *Memory {
	return &Memory{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// type check
var _ Store = (*Memory)(nil)

// Get implements the Store interface for *Memory.
func (m *Memory) Get(_ context.Context, key string) (val []byte, ok bool, err error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

// Set implements the Store interface for *Memory.
func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.cache.Set(key, bytesCopy(val), ttl)
	return nil
}

// Name implements the Store interface for *Memory.
func (m *Memory) Name() string { return BackendMemory }

// Close implements the Store interface for *Memory.
func (m *Memory) Close() error {
	m.cache.Flush()
	return nil
}

// Len returns the number of items, including expired ones not yet purged.
func (m *Memory) Len() int {
	return m.cache.ItemCount()
}

func bytesCopy(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
