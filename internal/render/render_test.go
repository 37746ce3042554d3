package render

import (
	"net"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyvra-tech/myip/internal/models"
	"github.com/kyvra-tech/myip/internal/negotiate"
)

func ptr(f float64) *float64 { return &f }

func testRecord() *models.LookupRecord {
	rec := models.NewLookupRecord("185.130.44.140", "curl/8.4.0")
	rec.IPValid = true
	rec.IPType = models.IPv4
	rec.Hostname = "myip.privex.io"
	rec.Geo = &models.GeoBlock{
		City:        "Stockholm",
		Country:     "Sweden",
		CountryCode: "SE",
		Postcode:    "173 11",
		Lat:         ptr(59.3293),
		Long:        ptr(18.0686),
		ASNumber:    210083,
		ASName:      "Privex Inc.",
		Network:     "185.130.44.0/22",
	}
	return rec
}

func TestFlat(t *testing.T) {
	rec := testRecord()

	tests := []struct {
		field string
		want  string
	}{
		{"", "185.130.44.140"},
		{"none", "185.130.44.140"},
		{"bogus", "185.130.44.140"},
		{"ua", "curl/8.4.0"},
		{"version", "ipv4"},
		{"rdns", "myip.privex.io"},
		{"Country", "Sweden"},
		{"CODE", "SE"},
		{"area", "Stockholm"},
		{"asinfo", "Privex Inc.\nAS210083"},
		{"asn", "210083"},
		{"isp", "Privex Inc."},
		{"zip", "173 11"},
		{"loc", "Stockholm, 173 11, Sweden"},
		{"coords", "59.3293, 18.0686"},
		{"lat", "59.3293"},
		{"long", "18.0686"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, Flat(rec, tt.field))
		})
	}
}

func TestFlat_All(t *testing.T) {
	want := "IP: 185.130.44.140\n" +
		"Version: ipv4\n" +
		"Hostname: myip.privex.io\n" +
		"UserAgent: curl/8.4.0\n" +
		"Country: Sweden\n" +
		"CountryCode: SE\n" +
		"City: Stockholm\n" +
		"Postcode: 173 11\n" +
		"Lat: 59.3293\n" +
		"Long: 18.0686\n" +
		"ASNum: 210083\n" +
		"ASName: Privex Inc.\n" +
		"Network: 185.130.44.0/22\n"

	assert.Equal(t, want, Flat(testRecord(), "all"))
}

func TestFlat_MissingData(t *testing.T) {
	rec := models.NewLookupRecord("10.0.0.1", "")
	rec.IPValid = true
	rec.IPType = models.IPv4
	rec.Geo = &models.GeoBlock{Country: "Sweden"}

	assert.Equal(t, "Sweden", Flat(rec, "location"))
	assert.Equal(t, "", Flat(rec, "coordinates"))
	assert.Equal(t, "", Flat(rec, "latitude"))
	assert.Equal(t, "", Flat(rec, "asn"))

	rec.Geo.City = "Stockholm"
	assert.Equal(t, "Stockholm, Sweden", Flat(rec, "location"))

	rec.Geo = nil
	assert.Equal(t, "", Flat(rec, "country"))
	assert.Equal(t, "10.0.0.1", Flat(rec, "ip"))
}

func TestFlat_AliasCoverage(t *testing.T) {
	rec := testRecord()
	for f, aliases := range fieldAliases {
		want := Flat(rec, string(f))
		for _, a := range aliases {
			if got := Flat(rec, a); got != want {
				t.Errorf("Flat(%q) = %q, want %q (same as %q)", a, got, want, f)
			}
			if got := Flat(rec, strings.ToUpper(a)); got != want {
				t.Errorf("Flat(%q) = %q, want %q", strings.ToUpper(a), got, want)
			}
		}
	}
}

func TestParseField_Unambiguous(t *testing.T) {
	seen := map[string]Field{}
	for f, aliases := range fieldAliases {
		for _, a := range aliases {
			if prev, ok := seen[a]; ok {
				t.Errorf("alias %q maps to both %q and %q", a, prev, f)
			}
			seen[a] = f
		}
	}
}

func TestToPrimitive_Idempotent(t *testing.T) {
	rec := testRecord()
	rec.AddMessage("note")

	first := ToPrimitive(rec)
	second := ToPrimitive(rec)
	assert.Equal(t, first, second)

	again := ToPrimitive(first)
	assert.Equal(t, first, again)
}

func TestToPrimitive_RecordOrder(t *testing.T) {
	m, ok := ToPrimitive(testRecord()).(*OrderedMap)
	require.True(t, ok)

	assert.Equal(t, []string{
		"ip", "user_agent", "hostname", "error", "messages", "ip_valid", "ip_type", "geo",
	}, m.Keys())

	geo, ok := m.values["geo"].(*OrderedMap)
	require.True(t, ok)
	assert.Equal(t, []string{
		"city", "country", "country_code", "postcode", "lat", "long",
		"as_number", "as_name", "network", "error",
	}, geo.Keys())
}

func TestJSON_InvalidRecord(t *testing.T) {
	rec := models.NewLookupRecord("not-an-ip", "")
	rec.AddMessage(models.MsgInvalidAddress)

	b, err := JSON(rec)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"ip": "not-an-ip",
		"user_agent": "Empty User Agent",
		"hostname": "",
		"error": false,
		"messages": ["Invalid IP address detected"],
		"ip_valid": false,
		"ip_type": null,
		"geo": {}
	}`, string(b))
}

func TestJSON_GeoError(t *testing.T) {
	rec := models.NewLookupRecord("10.0.0.1", "")
	rec.Geo = models.NewGeoError("IP address '10.0.0.1 (10.0.0.1)' not found in GeoIP database.")

	b, err := JSON(rec.Geo)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": true, "message": "IP address '10.0.0.1 (10.0.0.1)' not found in GeoIP database."}`, string(b))
}

func TestJSON_KeepsOrder(t *testing.T) {
	m := NewOrderedMap()
	m.Set("8.8.8.8", 1)
	m.Set("1.1.1.1", 2)
	m.Set("8.8.8.8", 3)

	b, err := JSON(m)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"8.8.8.8\": 3,\n  \"1.1.1.1\": 2\n}", string(b))
}

func TestYAML(t *testing.T) {
	rec := testRecord()
	m := NewOrderedMap()
	m.Set("addresses", map[string]any{"185.130.44.140": rec})

	b, err := YAML(m)
	require.NoError(t, err)

	out := string(b)
	assert.True(t, strings.HasPrefix(out, "addresses:\n  185.130.44.140:\n    ip: 185.130.44.140\n    user_agent: curl/8.4.0\n"), out)
	assert.Contains(t, out, "      country: Sweden\n")
	assert.Less(t, strings.Index(out, "ip_type:"), strings.Index(out, "geo:"))
}

type mapperValue struct{}

func (mapperValue) ToMap() map[string]any {
	return map[string]any{"b": 2, "a": netip.MustParseAddr("::1")}
}

type panickyStringer struct{}

func (panickyStringer) String() string { panic("boom") }

func TestToPrimitive_Types(t *testing.T) {
	_, network, err := net.ParseCIDR("2a07:e00::/29")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "x", "x"},
		{"int", 42, 42},
		{"bytes", []byte("abc"), "abc"},
		{"netip addr", netip.MustParseAddr("2a07:e01:123::456"), "2a07:e01:123::456"},
		{"netip prefix", netip.MustParsePrefix("10.0.0.0/8"), "10.0.0.0/8"},
		{"net ip", net.ParseIP("8.8.8.8"), "8.8.8.8"},
		{"net ipnet", network, "2a07:e00::/29"},
		{"format", negotiate.YAML, "yaml"},
		{"ip type", models.IPv6, "ipv6"},
		{"strings", []string{"a", "b"}, []any{"a", "b"}},
		{"int slice", []int{1, 2}, []any{1, 2}},
		{"nil pointer", (*int)(nil), nil},
		{"struct", struct {
			Name  string `json:"name"`
			Skip  string `json:"-"`
			Count int
		}{"x", "y", 3}, func() any {
			m := NewOrderedMap()
			m.Set("name", "x")
			m.Set("Count", 3)
			return m
		}()},
		{"mapper", mapperValue{}, func() any {
			m := NewOrderedMap()
			m.Set("a", "::1")
			m.Set("b", 2)
			return m
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToPrimitive(tt.in))
		})
	}
}

func TestToPrimitive_NeverPanics(t *testing.T) {
	ch := make(chan int)

	assert.NotPanics(t, func() {
		_ = ToPrimitive(ch)
		_ = ToPrimitive(panickyStringer{})
		_ = ToPrimitive(func() {})
	})

	_, ok := ToPrimitive(ch).(string)
	assert.True(t, ok)
}

func TestFields(t *testing.T) {
	fields := Fields()
	assert.Len(t, fields, len(fieldAliases))
	for _, f := range fields {
		assert.NotEmpty(t, FieldAliases(f), f)
	}
}
