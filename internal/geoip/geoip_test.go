package geoip

import (
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/kyvra-tech/myip/pkg/errors"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestConfigPath(t *testing.T) {
	c := Config{Dir: "/usr/local/var/GeoIP", Prefix: "GeoLite2-"}

	tests := []struct {
		edition string
		want    string
	}{
		{EditionCity, "/usr/local/var/GeoIP/GeoLite2-City.mmdb"},
		{EditionCountry, "/usr/local/var/GeoIP/GeoLite2-Country.mmdb"},
		{EditionASN, "/usr/local/var/GeoIP/GeoLite2-ASN.mmdb"},
	}

	for _, tt := range tests {
		if got := c.Path(tt.edition); got != tt.want {
			t.Errorf("Path(%q) = %q, want %q", tt.edition, got, tt.want)
		}
	}
}

func TestProvider_MissingDatabases(t *testing.T) {
	p := NewProvider(Config{Dir: t.TempDir(), Prefix: "GeoLite2-"}, quietLogger())
	defer p.Close()

	ip := netip.MustParseAddr("185.130.44.140")

	if _, _, err := p.City(ip); !errors.Is(err, errors.ErrSourceUnavailable) {
		t.Errorf("City() error = %v, want ErrSourceUnavailable", err)
	}
	if _, _, err := p.ASN(ip); !errors.Is(err, errors.ErrSourceUnavailable) {
		t.Errorf("ASN() error = %v, want ErrSourceUnavailable", err)
	}

	if err := p.Reload(); !errors.Is(err, errors.ErrSourceUnavailable) {
		t.Errorf("Reload() error = %v, want ErrSourceUnavailable", err)
	}

	for _, s := range p.Status() {
		if s.Loaded {
			t.Errorf("Status() edition %s loaded, want not loaded", s.Edition)
		}
	}
}

func TestProvider_CorruptDatabase(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir, Prefix: "GeoLite2-"}

	if err := os.WriteFile(filepath.Join(dir, "GeoLite2-City.mmdb"), []byte("not a database"), 0o600); err != nil {
		t.Fatal(err)
	}

	p := NewProvider(cfg, quietLogger())
	defer p.Close()

	if err := p.Reload(); err == nil {
		t.Error("Reload() error = nil, want error for unreadable database")
	}
}

func TestPrefixFromIPNet(t *testing.T) {
	tests := []struct {
		name string
		in   *net.IPNet
		want string
	}{
		{"nil", nil, "invalid Prefix"},
		{"ipv4", &net.IPNet{IP: net.IPv4(185, 130, 44, 0).To4(), Mask: net.CIDRMask(22, 32)}, "185.130.44.0/22"},
		{"ipv4 in ipv6", &net.IPNet{IP: net.IPv4(1, 1, 1, 0), Mask: net.CIDRMask(120, 128)}, "1.1.1.0/24"},
		{"ipv6", &net.IPNet{IP: net.ParseIP("2a07:e00::"), Mask: net.CIDRMask(29, 128)}, "2a07:e00::/29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := prefixFromIPNet(tt.in).String(); got != tt.want {
				t.Errorf("prefixFromIPNet() = %q, want %q", got, tt.want)
			}
		})
	}
}

func writeFixtures(t *testing.T, cfg Config) {
	t.Helper()

	writeTestDB(t, cfg.Path(EditionCity), "GeoLite2-City", netip.MustParsePrefix("8.8.8.0/24"), record{
		{"city", record{{"names", record{{"en", "Mountain View"}}}}},
		{"country", record{
			{"iso_code", "US"},
			{"names", record{{"en", "United States"}}},
		}},
		{"location", record{
			{"latitude", 37.386},
			{"longitude", -122.0838},
			{"time_zone", "America/Los_Angeles"},
		}},
		{"postal", record{{"code", "94035"}}},
	})
	writeTestDB(t, cfg.Path(EditionASN), "GeoLite2-ASN", netip.MustParsePrefix("8.8.0.0/16"), record{
		{"autonomous_system_number", uint32(15169)},
		{"autonomous_system_organization", "GOOGLE"},
	})
}

func TestProvider_Lookup(t *testing.T) {
	cfg := Config{Dir: t.TempDir(), Prefix: "GeoLite2-"}
	writeFixtures(t, cfg)

	p := NewProvider(cfg, quietLogger())
	defer p.Close()

	ip := netip.MustParseAddr("8.8.8.8")

	city, network, err := p.City(ip)
	if err != nil {
		t.Fatalf("City() error = %v", err)
	}
	if got := network.String(); got != "8.8.8.0/24" {
		t.Errorf("City() network = %q, want %q", got, "8.8.8.0/24")
	}
	if got := city.City.Names["en"]; got != "Mountain View" {
		t.Errorf("City() city = %q, want %q", got, "Mountain View")
	}
	if city.Country.IsoCode != "US" || city.Country.Names["en"] != "United States" {
		t.Errorf("City() country = %+v, want US / United States", city.Country)
	}
	if city.Location.Latitude != 37.386 || city.Location.Longitude != -122.0838 {
		t.Errorf("City() location = %v,%v, want 37.386,-122.0838", city.Location.Latitude, city.Location.Longitude)
	}
	if city.Location.TimeZone != "America/Los_Angeles" || city.Postal.Code != "94035" {
		t.Errorf("City() time zone / postal = %q / %q", city.Location.TimeZone, city.Postal.Code)
	}

	asn, network, err := p.ASN(ip)
	if err != nil {
		t.Fatalf("ASN() error = %v", err)
	}
	if got := network.String(); got != "8.8.0.0/16" {
		t.Errorf("ASN() network = %q, want %q", got, "8.8.0.0/16")
	}
	if asn.AutonomousSystemNumber != 15169 || asn.AutonomousSystemOrganization != "GOOGLE" {
		t.Errorf("ASN() = %+v, want 15169 GOOGLE", asn)
	}

	other := netip.MustParseAddr("1.1.1.1")
	if _, _, err = p.City(other); !errors.Is(err, errors.ErrAddressNotFound) {
		t.Errorf("City(%s) error = %v, want ErrAddressNotFound", other, err)
	}
	if _, _, err = p.ASN(other); !errors.Is(err, errors.ErrAddressNotFound) {
		t.Errorf("ASN(%s) error = %v, want ErrAddressNotFound", other, err)
	}

	loaded := map[string]bool{}
	for _, s := range p.Status() {
		loaded[s.Edition] = s.Loaded
	}
	want := map[string]bool{EditionCity: true, EditionCountry: false, EditionASN: true}
	for edition, w := range want {
		if loaded[edition] != w {
			t.Errorf("Status() %s loaded = %v, want %v", edition, loaded[edition], w)
		}
	}
}

func TestProvider_CountryFallback(t *testing.T) {
	cfg := Config{Dir: t.TempDir(), Prefix: "GeoLite2-"}
	writeTestDB(t, cfg.Path(EditionCountry), "GeoLite2-Country", netip.MustParsePrefix("185.130.44.0/22"), record{
		{"country", record{{"iso_code", "SE"}}},
	})

	p := NewProvider(cfg, quietLogger())
	defer p.Close()

	city, network, err := p.City(netip.MustParseAddr("185.130.44.140"))
	if err != nil {
		t.Fatalf("City() error = %v", err)
	}
	if city.Country.IsoCode != "SE" || network.String() != "185.130.44.0/22" {
		t.Errorf("City() = %q %s, want SE 185.130.44.0/22", city.Country.IsoCode, network)
	}
}

func TestProvider_ConcurrentFirstLookup(t *testing.T) {
	for round := 0; round < 50; round++ {
		logger, hook := test.NewNullLogger()
		p := NewProvider(Config{Dir: t.TempDir(), Prefix: "GeoLite2-"}, logger)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, _ = p.City(netip.MustParseAddr("8.8.8.8"))
			}()
		}
		wg.Wait()

		attempts := 0
		for _, e := range hook.AllEntries() {
			if e.Message == "GeoIP database not available" {
				attempts++
			}
		}
		_ = p.Close()

		if attempts != 3 {
			t.Fatalf("round %d: %d open attempts, want 3 (one per edition)", round, attempts)
		}
	}
}

func TestProvider_ReloadPicksUpNewFiles(t *testing.T) {
	cfg := Config{Dir: t.TempDir(), Prefix: "GeoLite2-"}

	p := NewProvider(cfg, quietLogger())
	defer p.Close()

	ip := netip.MustParseAddr("8.8.8.8")
	if _, _, err := p.ASN(ip); !errors.Is(err, errors.ErrSourceUnavailable) {
		t.Fatalf("ASN() error = %v, want ErrSourceUnavailable", err)
	}

	writeFixtures(t, cfg)
	if err := p.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if _, _, err := p.ASN(ip); err != nil {
		t.Errorf("ASN() after Reload error = %v", err)
	}
}
