package services

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/kyvra-tech/myip/internal/cache"
	"github.com/kyvra-tech/myip/internal/geoip"
	"github.com/kyvra-tech/myip/internal/models"
	"github.com/kyvra-tech/myip/pkg/errors"
	"github.com/kyvra-tech/myip/pkg/metrics"
)

// GeoKeyPrefix is the cache namespace of geolocation results
const GeoKeyPrefix = "geoip:"

// GeoStatus is the outcome of a geolocation lookup
type GeoStatus uint8

const (
	GeoFound GeoStatus = iota
	GeoNotFound
	GeoUnavailable
)

// String returns the metrics label of s
func (s GeoStatus) String() string {
	switch s {
	case GeoFound:
		return "found"
	case GeoNotFound:
		return "not_found"
	default:
		return "unavailable"
	}
}

// GeoResult is a geolocation lookup result.  Block is empty unless Status is
// GeoFound.
type GeoResult struct {
	Status GeoStatus
	Block  models.GeoBlock
}

// cachedGeo is the cached form of a GeoResult
type cachedGeo struct {
	Status GeoStatus       `msgpack:"status"`
	Block  models.GeoBlock `msgpack:"block"`
}

// GeoCacheConfig configures a GeoCache
type GeoCacheConfig struct {
	TTL    time.Duration
	Locale string
}

// GeoCache looks up addresses in the GeoIP source and caches the merged
// City + ASN result
type GeoCache struct {
	source  geoip.Source
	store   cache.Store
	ttl     time.Duration
	locale  string
	group   singleflight.Group
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewGeoCache creates a new geolocation cache
func NewGeoCache(source geoip.Source, store cache.Store, cfg GeoCacheConfig, logger *logrus.Logger, m *metrics.Metrics) *GeoCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 600 * time.Second
	}
	if cfg.Locale == "" {
		cfg.Locale = "en"
	}

	return &GeoCache{
		source:  source,
		store:   store,
		ttl:     cfg.TTL,
		locale:  cfg.Locale,
		logger:  logger,
		metrics: m,
	}
}

// Lookup returns the geolocation of ip, from the cache when possible.  With
// strict set, GeoNotFound and GeoUnavailable results are also returned as
// errors wrapping errors.ErrAddressNotFound and errors.ErrSourceUnavailable.
func (c *GeoCache) Lookup(ctx context.Context, ip netip.Addr, strict bool) (GeoResult, error) {
	key := GeoKeyPrefix + ip.String()

	res, ok := c.cached(ctx, key)
	c.metrics.RecordCacheLookup("geo", ok)
	if !ok {
		v, _, _ := c.group.Do(key, func() (any, error) {
			r := c.fromSource(ip)
			c.save(ctx, key, r)
			return r, nil
		})
		res = v.(GeoResult)
	}

	if !strict {
		return res, nil
	}

	switch res.Status {
	case GeoNotFound:
		return res, errors.Wrapf(errors.ErrAddressNotFound, "geo lookup %s", ip)
	case GeoUnavailable:
		return res, errors.Wrapf(errors.ErrSourceUnavailable, "geo lookup %s", ip)
	default:
		return res, nil
	}
}

// cached returns the stored result for key.  Backend failures are logged and
// treated as a miss.
func (c *GeoCache) cached(ctx context.Context, key string) (res GeoResult, ok bool) {
	b, err := cache.Fetch(ctx, c.store, key)
	if err != nil {
		if !errors.IsCacheMiss(err) {
			c.metrics.RecordCacheError(c.store.Name(), "get")
			c.logger.WithError(err).WithField("key", key).Warn("Failed to read geo cache")
		}
		return GeoResult{}, false
	}

	var cg cachedGeo
	if err = msgpack.Unmarshal(b, &cg); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Discarding malformed geo cache entry")
		return GeoResult{}, false
	}

	return GeoResult(cg), true
}

func (c *GeoCache) save(ctx context.Context, key string, res GeoResult) {
	b, err := msgpack.Marshal(cachedGeo(res))
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Error("Failed to encode geo cache entry")
		return
	}

	if err = c.store.Set(ctx, key, b, c.ttl); err != nil {
		c.metrics.RecordCacheError(c.store.Name(), "set")
		c.logger.WithError(err).WithField("key", key).Warn("Failed to write geo cache")
	}
}

// fromSource queries the City and ASN databases.  Either may fail alone; the
// address is only reported as not found when neither database has it.
func (c *GeoCache) fromSource(ip netip.Addr) GeoResult {
	start := time.Now()

	city, cityNet, cityErr := c.source.City(ip)
	asn, asnNet, asnErr := c.source.ASN(ip)

	var res GeoResult
	switch {
	case cityErr != nil && asnErr != nil:
		if errors.IsNotFound(cityErr) && errors.IsNotFound(asnErr) {
			res.Status = GeoNotFound
		} else {
			res.Status = GeoUnavailable
			c.logger.WithFields(logrus.Fields{
				"ip":       ip.String(),
				"city_err": cityErr,
				"asn_err":  asnErr,
			}).Warn("GeoIP lookup failed, caching empty result")
		}
	default:
		res.Status = GeoFound
		c.logPartial(ip, "city", cityErr)
		c.logPartial(ip, "asn", asnErr)
		res.Block = c.merge(city, asn)
		res.Block.Network = networkString(cityNet, asnNet)
	}

	c.metrics.RecordGeoLookup(res.Status.String(), time.Since(start))
	return res
}

func (c *GeoCache) logPartial(ip netip.Addr, db string, err error) {
	if err == nil || errors.IsNotFound(err) {
		return
	}
	c.logger.WithError(err).WithFields(logrus.Fields{
		"ip": ip.String(),
		"db": db,
	}).Info("Partial GeoIP lookup failure")
}

func (c *GeoCache) merge(city *geoip2.City, asn *geoip2.ASN) models.GeoBlock {
	var b models.GeoBlock

	if city != nil {
		b.City = c.name(city.City.Names)
		b.Country = c.name(city.Country.Names)
		b.CountryCode = city.Country.IsoCode
		if b.CountryCode == "" {
			b.Country = c.name(city.RegisteredCountry.Names)
			b.CountryCode = city.RegisteredCountry.IsoCode
		}
		b.Postcode = city.Postal.Code

		loc := city.Location
		if loc.Latitude != 0 || loc.Longitude != 0 {
			lat, long := loc.Latitude, loc.Longitude
			b.Lat, b.Long = &lat, &long
		}
	}

	if asn != nil {
		b.ASNumber = asn.AutonomousSystemNumber
		b.ASName = asn.AutonomousSystemOrganization
	}

	return b
}

// name returns the localized name, falling back to English.
func (c *GeoCache) name(names map[string]string) string {
	if n, ok := names[c.locale]; ok {
		return n
	}
	return names["en"]
}

func networkString(prefixes ...netip.Prefix) string {
	for _, p := range prefixes {
		if p.IsValid() {
			return p.String()
		}
	}
	return ""
}

// NotFoundMessage is the diagnostic recorded for an address missing from the
// GeoIP databases.
func NotFoundMessage(canonical, input string) string {
	return fmt.Sprintf("IP address '%s (%s)' not found in GeoIP database.", canonical, input)
}
