// Package geoip reads city, country and ASN data from MaxMind GeoIP2 / GeoLite2
// database files.
package geoip

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/myip/pkg/errors"
)

// Source looks up a single address.  Both methods return
// errors.ErrAddressNotFound when the address is not in the database and
// errors.ErrSourceUnavailable when the database cannot be read.
type Source interface {
	City(ip netip.Addr) (rec *geoip2.City, network netip.Prefix, err error)
	ASN(ip netip.Addr) (rec *geoip2.ASN, network netip.Prefix, err error)
}

// Database editions
const (
	EditionCity    = "City"
	EditionCountry = "Country"
	EditionASN     = "ASN"
)

// Config is the location of the database files
type Config struct {
	// Dir is the directory holding the .mmdb files.
	Dir string

	// Prefix is prepended to each edition name, e.g. "GeoLite2-".
	Prefix string
}

// Path returns the file path of the given edition.
func (c Config) Path(edition string) string {
	return filepath.Join(c.Dir, c.Prefix+edition+".mmdb")
}

// DatabaseStatus describes one loaded database file
type DatabaseStatus struct {
	Edition string    `json:"edition"`
	Path    string    `json:"path"`
	Loaded  bool      `json:"loaded"`
	BuiltAt time.Time `json:"built_at,omitempty"`
}

// Provider is a Source backed by on-disk MaxMind databases.  The files are
// opened on the first lookup and can be swapped at runtime with Reload.
type Provider struct {
	cfg    Config
	logger *logrus.Logger

	// loadMu serializes opening the files, so concurrent first lookups share
	// one initialization.
	loadMu sync.Mutex

	// mu protects the readers during a reload.
	mu      sync.RWMutex
	loaded  bool
	city    *maxminddb.Reader
	country *maxminddb.Reader
	asn     *maxminddb.Reader
}

// NewProvider returns a new *Provider.  No files are opened until the first
// lookup or an explicit call to Reload.
func NewProvider(cfg Config, logger *logrus.Logger) *Provider {
	return &Provider{
		cfg:    cfg,
		logger: logger,
	}
}

// type check
var _ Source = (*Provider)(nil)

// Reload opens the database files again and replaces the current readers.  An
// edition whose file is missing is skipped; an error is returned only when no
// usable database remains.
func (p *Provider) Reload() error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	return p.swap(p.load())
}

// readers is one set of opened database files.
type readers struct {
	city, country, asn *maxminddb.Reader
}

// load opens every edition.  p.loadMu must be held.
func (p *Provider) load() readers {
	return readers{
		city:    p.open(EditionCity),
		country: p.open(EditionCountry),
		asn:     p.open(EditionASN),
	}
}

// swap installs rs and closes the readers it replaces.
func (p *Provider) swap(rs readers) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	closeReaders(p.city, p.country, p.asn)
	p.city, p.country, p.asn = rs.city, rs.country, rs.asn
	p.loaded = true

	if rs.city == nil && rs.country == nil && rs.asn == nil {
		return errors.Wrapf(errors.ErrSourceUnavailable, "no GeoIP databases in %s", p.cfg.Dir)
	}
	return nil
}

func (p *Provider) open(edition string) *maxminddb.Reader {
	path := p.cfg.Path(edition)
	log := p.logger.WithFields(logrus.Fields{"edition": edition, "path": path})

	if _, err := os.Stat(path); err != nil {
		log.WithError(err).Warn("GeoIP database not available")
		return nil
	}

	r, err := maxminddb.Open(path)
	if err != nil {
		log.WithError(err).Error("Failed to open GeoIP database")
		return nil
	}

	log.WithField("build_epoch", r.Metadata.BuildEpoch).Info("Opened GeoIP database")
	return r
}

func closeReaders(readers ...*maxminddb.Reader) {
	for _, r := range readers {
		if r != nil {
			_ = r.Close()
		}
	}
}

// ensureLoaded opens the databases if this is the first use.
func (p *Provider) ensureLoaded() {
	if p.isLoaded() {
		return
	}

	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	if p.isLoaded() {
		return
	}
	_ = p.swap(p.load())
}

func (p *Provider) isLoaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.loaded
}

// City implements the Source interface for *Provider.  The Country database
// is used when no City database is present.
func (p *Provider) City(ip netip.Addr) (rec *geoip2.City, network netip.Prefix, err error) {
	p.ensureLoaded()

	p.mu.RLock()
	defer p.mu.RUnlock()

	r, edition := p.city, EditionCity
	if r == nil {
		r, edition = p.country, EditionCountry
	}

	rec = &geoip2.City{}
	network, err = lookup(r, edition, ip, rec)
	if err != nil {
		return nil, netip.Prefix{}, err
	}
	return rec, network, nil
}

// ASN implements the Source interface for *Provider.
func (p *Provider) ASN(ip netip.Addr) (rec *geoip2.ASN, network netip.Prefix, err error) {
	p.ensureLoaded()

	p.mu.RLock()
	defer p.mu.RUnlock()

	rec = &geoip2.ASN{}
	network, err = lookup(p.asn, EditionASN, ip, rec)
	if err != nil {
		return nil, netip.Prefix{}, err
	}
	return rec, network, nil
}

func lookup(r *maxminddb.Reader, edition string, ip netip.Addr, result any) (network netip.Prefix, err error) {
	if r == nil {
		return netip.Prefix{}, errors.Wrapf(errors.ErrSourceUnavailable, "%s database is not loaded", edition)
	}

	n, ok, err := r.LookupNetwork(net.IP(ip.Unmap().AsSlice()), result)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%s lookup %s: %w: %w", edition, ip, errors.ErrSourceUnavailable, err)
	}
	if !ok {
		return netip.Prefix{}, errors.Wrapf(errors.ErrAddressNotFound, "%s lookup %s", edition, ip)
	}

	return prefixFromIPNet(n), nil
}

// prefixFromIPNet converts n, returning an invalid prefix when n is nil.
func prefixFromIPNet(n *net.IPNet) netip.Prefix {
	if n == nil {
		return netip.Prefix{}
	}

	addr, ok := netip.AddrFromSlice(n.IP)
	if !ok {
		return netip.Prefix{}
	}

	ones, _ := n.Mask.Size()
	if addr.Is4In6() && ones >= 96 {
		addr, ones = addr.Unmap(), ones-96
	}
	return netip.PrefixFrom(addr, ones).Masked()
}

// Status reports which database editions are loaded.
func (p *Provider) Status() []DatabaseStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	editions := []struct {
		name string
		r    *maxminddb.Reader
	}{
		{EditionCity, p.city},
		{EditionCountry, p.country},
		{EditionASN, p.asn},
	}

	st := make([]DatabaseStatus, 0, len(editions))
	for _, e := range editions {
		s := DatabaseStatus{
			Edition: e.name,
			Path:    p.cfg.Path(e.name),
			Loaded:  e.r != nil,
		}
		if e.r != nil {
			s.BuiltAt = time.Unix(int64(e.r.Metadata.BuildEpoch), 0).UTC()
		}
		st = append(st, s)
	}
	return st
}

// Close closes every open database.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	closeReaders(p.city, p.country, p.asn)
	p.city, p.country, p.asn = nil, nil, nil
	p.loaded = false
	return nil
}
