package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// initRetryDelay is how long a failed initialization is remembered before the
// next call tries again.
const initRetryDelay = 30 * time.Second

// Lazy is a Store that runs its initializer on first use.  Concurrent first
// calls share a single initialization.  After a failure, calls return the
// same error without running the initializer until initRetryDelay passes.
type Lazy struct {
	mu    sync.Mutex
	init  func(ctx context.Context) (Store, error)
	store Store

	now      func() time.Time
	failedAt time.Time
	lastErr  error
}

// NewLazy returns a new *Lazy using init to build the underlying store.
func NewLazy(init func(ctx context.Context) (Store, error)) *Lazy {
	return &Lazy{init: init, now: time.Now}
}

// NewReady returns a *Lazy that is already backed by s.
func NewReady(s Store) *Lazy {
	return &Lazy{store: s, now: time.Now}
}

// type check
var _ Store = (*Lazy)(nil)

func (l *Lazy) get(ctx context.Context) (Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store != nil {
		return l.store, nil
	}

	now := l.now()
	if l.lastErr != nil && now.Sub(l.failedAt) < initRetryDelay {
		return nil, fmt.Errorf("cache: backend unavailable since %s: %w", l.failedAt.Format(time.RFC3339), l.lastErr)
	}

	s, err := l.init(ctx)
	if err != nil {
		l.failedAt, l.lastErr = now, err
		return nil, err
	}
	l.store, l.lastErr = s, nil
	return s, nil
}

// Get implements the Store interface for *Lazy.
func (l *Lazy) Get(ctx context.Context, key string) (val []byte, ok bool, err error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, false, err
	}
	return s.Get(ctx, key)
}

// Set implements the Store interface for *Lazy.
func (l *Lazy) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, val, ttl)
}

// Name implements the Store interface for *Lazy.  It returns the active
// backend's name, or "uninitialized" before the first use.
func (l *Lazy) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store == nil {
		return "uninitialized"
	}
	return l.store.Name()
}

// Active returns the initialized backend, if any.
func (l *Lazy) Active() (s Store, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.store, l.store != nil
}

// Close implements the Store interface for *Lazy.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
