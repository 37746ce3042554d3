package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"

	"github.com/kyvra-tech/myip/pkg/errors"
)

// LRU is a size-bounded in-process Store evicting the least recently used
// keys first.
type LRU struct {
	cache gcache.Cache
}

// NewLRU returns a new *LRU holding at most size items.
func NewLRU(size int) *LRU {
	if size <= 0 {
		size = 10000
	}
	return &LRU{
		cache: gcache.New(size).LRU().Build(),
	}
}

// type check
var _ Store = (*LRU)(nil)

// Get implements the Store interface for *LRU.
func (c *LRU) Get(_ context.Context, key string) (val []byte, ok bool, err error) {
	v, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, gcache.KeyNotFoundError) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lru get: %w", err)
	}
	return v.([]byte), true, nil
}

// Set implements the Store interface for *LRU.
func (c *LRU) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if err := c.cache.SetWithExpire(key, bytesCopy(val), ttl); err != nil {
		return fmt.Errorf("lru set: %w", err)
	}
	return nil
}

// Name implements the Store interface for *LRU.
func (c *LRU) Name() string { return BackendLRU }

// Close implements the Store interface for *LRU.
func (c *LRU) Close() error {
	c.cache.Purge()
	return nil
}
