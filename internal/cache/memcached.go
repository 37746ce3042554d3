package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kyvra-tech/myip/pkg/errors"
)

// Memcached is a Store backed by one or more memcached servers.
type Memcached struct {
	client *memcache.Client
}

// NewMemcached returns a new *Memcached for servers.
func NewMemcached(servers []string, timeout time.Duration) *Memcached {
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	return &Memcached{client: client}
}

// type check
var _ Store = (*Memcached)(nil)

// Get implements the Store interface for *Memcached.
func (m *Memcached) Get(_ context.Context, key string) (val []byte, ok bool, err error) {
	item, err := m.client.Get(key)
	switch {
	case err == nil:
		return item.Value, true, nil
	case errors.Is(err, memcache.ErrCacheMiss):
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("memcached: get %q: %w", key, err)
	}
}

// Set implements the Store interface for *Memcached.  Expiry has a one second
// resolution.
func (m *Memcached) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	secs := int32(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}

	err := m.client.Set(&memcache.Item{Key: key, Value: val, Expiration: secs})
	if err != nil {
		return fmt.Errorf("memcached: set %q: %w", key, err)
	}
	return nil
}

// Name implements the Store interface for *Memcached.
func (m *Memcached) Name() string { return BackendMemcached }

// Close implements the Store interface for *Memcached.  Idle connections are
// released together with the client.
func (m *Memcached) Close() error {
	return nil
}
