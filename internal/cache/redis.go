package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/kyvra-tech/myip/pkg/errors"
)

// minRedisTTL is the smallest expiry Redis accepts with PX.
const minRedisTTL = time.Millisecond

// RedisConfig configures the Redis backend
type RedisConfig struct {
	Addr        string
	DB          int
	Password    string
	DialTimeout time.Duration
	MaxIdle     int
}

// Redis is a Store backed by a Redis server.
type Redis struct {
	pool *redis.Pool
}

// NewRedis returns a new *Redis.  No connection is made until first use.
func NewRedis(c RedisConfig) *Redis {
	opts := []redis.DialOption{
		redis.DialDatabase(c.DB),
		redis.DialConnectTimeout(c.DialTimeout),
		redis.DialReadTimeout(c.DialTimeout),
		redis.DialWriteTimeout(c.DialTimeout),
	}
	if c.Password != "" {
		opts = append(opts, redis.DialPassword(c.Password))
	}

	maxIdle := c.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 8
	}

	return &Redis{
		pool: &redis.Pool{
			MaxIdle:     maxIdle,
			IdleTimeout: 4 * time.Minute,
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialContext(ctx, "tcp", c.Addr, opts...)
			},
		},
	}
}

// type check
var _ Store = (*Redis)(nil)

// Get implements the Store interface for *Redis.
func (r *Redis) Get(ctx context.Context, key string) (val []byte, ok bool, err error) {
	c, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("redis: getting from pool: %w", err)
	}
	defer c.Close()

	val, err = redis.Bytes(redis.DoContext(c, ctx, "GET", key))
	switch {
	case err == nil:
		return val, true, nil
	case errors.Is(err, redis.ErrNil):
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("redis: get %q: %w", key, err)
	}
}

// Set implements the Store interface for *Redis.
func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	c, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis: getting from pool: %w", err)
	}
	defer c.Close()

	if ttl < minRedisTTL {
		ttl = minRedisTTL
	}

	if _, err = redis.DoContext(c, ctx, "SET", key, val, "PX", ttl.Milliseconds()); err != nil {
		return fmt.Errorf("redis: set %q: %w", key, err)
	}
	return nil
}

// Name implements the Store interface for *Redis.
func (r *Redis) Name() string { return BackendRedis }

// Close implements the Store interface for *Redis.
func (r *Redis) Close() error {
	return r.pool.Close()
}
