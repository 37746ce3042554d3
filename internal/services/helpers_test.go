package services

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/myip/internal/cache"
	"github.com/kyvra-tech/myip/internal/geoip"
	"github.com/kyvra-tech/myip/pkg/errors"
	"github.com/kyvra-tech/myip/pkg/metrics"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

// fakeSource is a geoip.Source serving fixed records and counting calls.
type fakeSource struct {
	mu        sync.Mutex
	cityCalls int
	asnCalls  int

	city    map[netip.Addr]*geoip2.City
	asn     map[netip.Addr]*geoip2.ASN
	network netip.Prefix

	cityErr error
	asnErr  error
}

// type check
var _ geoip.Source = (*fakeSource)(nil)

func (s *fakeSource) City(ip netip.Addr) (*geoip2.City, netip.Prefix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cityCalls++
	if s.cityErr != nil {
		return nil, netip.Prefix{}, s.cityErr
	}
	rec, ok := s.city[ip]
	if !ok {
		return nil, netip.Prefix{}, errors.Wrapf(errors.ErrAddressNotFound, "city %s", ip)
	}
	return rec, s.network, nil
}

func (s *fakeSource) ASN(ip netip.Addr) (*geoip2.ASN, netip.Prefix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.asnCalls++
	if s.asnErr != nil {
		return nil, netip.Prefix{}, s.asnErr
	}
	rec, ok := s.asn[ip]
	if !ok {
		return nil, netip.Prefix{}, errors.Wrapf(errors.ErrAddressNotFound, "asn %s", ip)
	}
	return rec, s.network, nil
}

func (s *fakeSource) calls() (city, asn int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cityCalls, s.asnCalls
}

func stockholm() *geoip2.City {
	c := &geoip2.City{}
	c.City.Names = map[string]string{"en": "Stockholm", "de": "Stockholm"}
	c.Country.Names = map[string]string{"en": "Sweden", "de": "Schweden"}
	c.Country.IsoCode = "SE"
	c.Postal.Code = "173 11"
	c.Location.Latitude = 59.3293
	c.Location.Longitude = 18.0686
	return c
}

func privexASN() *geoip2.ASN {
	return &geoip2.ASN{
		AutonomousSystemNumber:       210083,
		AutonomousSystemOrganization: "Privex Inc.",
	}
}

// newFakeSource returns a source that knows 185.130.44.140 and 8.8.8.8.
func newFakeSource() *fakeSource {
	known := []netip.Addr{
		netip.MustParseAddr("185.130.44.140"),
		netip.MustParseAddr("8.8.8.8"),
		netip.MustParseAddr("2a07:e01:123::456"),
	}

	s := &fakeSource{
		city:    map[netip.Addr]*geoip2.City{},
		asn:     map[netip.Addr]*geoip2.ASN{},
		network: netip.MustParsePrefix("185.130.44.0/22"),
	}
	for _, ip := range known {
		s.city[ip] = stockholm()
		s.asn[ip] = privexASN()
	}
	return s
}

// fakeResolver is an rdns.Resolver serving fixed names and counting calls.
type fakeResolver struct {
	mu    sync.Mutex
	calls int
	hosts map[netip.Addr]string
}

func (r *fakeResolver) LookupAddr(_ context.Context, ip netip.Addr) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	h, ok := r.hosts[ip]
	if !ok {
		return "", fmt.Errorf("%w: %s: NXDOMAIN", errors.ErrReverseDNS, ip)
	}
	return h, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("dial tcp: connection refused")
}

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return fmt.Errorf("dial tcp: connection refused")
}

func (brokenStore) Name() string { return "broken" }
func (brokenStore) Close() error { return nil }

// type check
var _ cache.Store = brokenStore{}

var testMetrics = metrics.NewMetrics()
