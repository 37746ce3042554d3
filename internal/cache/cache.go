// Package cache contains the TTL key-value stores used to avoid repeating slow
// GeoIP and reverse DNS lookups.
package cache

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/kyvra-tech/myip/pkg/errors"
)

// Store is a key-value store with per-key expiry.  Implementations must be
// safe for concurrent use.
type Store interface {
	// Get returns the value for key.  ok is false when the key is absent or
	// expired; err is only set for backend failures.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)

	// Set stores val under key for ttl.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Name returns the backend name used in logs, metrics and health output.
	Name() string

	// Close releases the backend's resources.
	Close() error
}

// Backend names
const (
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
	BackendMemory    = "memory"
	BackendLRU       = "lru"
	BackendLevelDB   = "leveldb"
)

// Probe key and value written when checking that a backend works.
const (
	ProbeKey   = "myip:testing_cache"
	ProbeValue = "test123"
	ProbeTTL   = 120 * time.Second
)

// Fetch is like Store.Get but reports a missing key as errors.ErrCacheMiss.
func Fetch(ctx context.Context, s Store, key string) (val []byte, err error) {
	val, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(errors.ErrCacheMiss, "key %q", key)
	}
	return val, nil
}

// Probe sets and reads back the probe key, returning an error unless the
// value survives the round trip.
func Probe(ctx context.Context, s Store) error {
	if err := s.Set(ctx, ProbeKey, []byte(ProbeValue), ProbeTTL); err != nil {
		return fmt.Errorf("setting probe key: %w", err)
	}

	val, err := Fetch(ctx, s, ProbeKey)
	if err != nil {
		return fmt.Errorf("getting probe key: %w", err)
	}

	if !bytes.Equal(val, []byte(ProbeValue)) {
		return fmt.Errorf("probe value mismatch: got %q", val)
	}
	return nil
}
