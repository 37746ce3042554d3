package services

import (
	"context"
	"net/netip"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/myip/internal/cache"
	"github.com/kyvra-tech/myip/internal/rdns"
	"github.com/kyvra-tech/myip/pkg/errors"
	"github.com/kyvra-tech/myip/pkg/metrics"
)

// RDNSKeyPrefix is the cache namespace of reverse DNS results
const RDNSKeyPrefix = "myip:rdns:"

// RDNSCache caches reverse DNS lookups
type RDNSCache struct {
	resolver rdns.Resolver
	store    cache.Store
	ttl      time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

// NewRDNSCache creates a new reverse DNS cache
func NewRDNSCache(resolver rdns.Resolver, store cache.Store, ttl time.Duration, logger *logrus.Logger, m *metrics.Metrics) *RDNSCache {
	if ttl <= 0 {
		ttl = 3600 * time.Second
	}
	return &RDNSCache{
		resolver: resolver,
		store:    store,
		ttl:      ttl,
		logger:   logger,
		metrics:  m,
	}
}

// rdnsKey returns the cache key for ip.  Strict and lenient lookups are cached
// separately since only lenient ones store failures.
func rdnsKey(ip netip.Addr, strict bool) string {
	return RDNSKeyPrefix + ip.String() + ":" + strconv.FormatBool(strict)
}

// Resolve returns the host name of ip.  When the lookup fails, a lenient call
// caches and returns fallback while a strict call returns the error and caches
// nothing.
func (c *RDNSCache) Resolve(ctx context.Context, ip netip.Addr, fallback string, strict bool) (string, error) {
	key := rdnsKey(ip, strict)

	b, err := cache.Fetch(ctx, c.store, key)
	switch {
	case err == nil:
		c.metrics.RecordCacheLookup("rdns", true)
		return string(b), nil
	case !errors.IsCacheMiss(err):
		c.metrics.RecordCacheError(c.store.Name(), "get")
		c.logger.WithError(err).WithField("key", key).Warn("Failed to read rDNS cache")
	}
	c.metrics.RecordCacheLookup("rdns", false)

	start := time.Now()
	host, err := c.resolver.LookupAddr(ctx, ip)
	c.metrics.RecordRDNSLookup(err == nil, time.Since(start))

	if err != nil {
		if strict {
			return "", err
		}
		c.logger.WithError(err).WithField("ip", ip.String()).Debug("Reverse DNS lookup failed")
		host = fallback
	}

	if err = c.store.Set(ctx, key, []byte(host), c.ttl); err != nil {
		c.metrics.RecordCacheError(c.store.Name(), "set")
		c.logger.WithError(err).WithField("key", key).Warn("Failed to write rDNS cache")
	}
	return host, nil
}
