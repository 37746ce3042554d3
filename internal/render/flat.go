package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kyvra-tech/myip/internal/models"
)

// Field is a canonical plain-text field name
type Field string

// Fields
const (
	FieldAddress     Field = "address"
	FieldUserAgent   Field = "user-agent"
	FieldIPVersion   Field = "ip-version"
	FieldReverseDNS  Field = "reverse-dns"
	FieldCountry     Field = "country"
	FieldCountryCode Field = "country-code"
	FieldCity        Field = "city"
	FieldASNFull     Field = "asn-full"
	FieldASNNumber   Field = "asn-number"
	FieldASNName     Field = "asn-name"
	FieldPostcode    Field = "postcode"
	FieldLocation    Field = "location"
	FieldCoordinates Field = "coordinates"
	FieldLatitude    Field = "latitude"
	FieldLongitude   Field = "longitude"
	FieldAll         Field = "all"
)

// fieldOrder lists the fields in documentation order.
var fieldOrder = []Field{
	FieldAddress, FieldUserAgent, FieldIPVersion, FieldReverseDNS, FieldCountry,
	FieldCountryCode, FieldCity, FieldPostcode, FieldLocation, FieldCoordinates,
	FieldLatitude, FieldLongitude, FieldASNNumber, FieldASNName, FieldASNFull, FieldAll,
}

// Fields returns every canonical field.
func Fields() []Field {
	return append([]Field(nil), fieldOrder...)
}

// fieldAliases maps each field to the lowercase names that select it.
var fieldAliases = map[Field][]string{
	FieldAddress:   {"", "none", "ip", "address", "addr", "ipaddr", "ipaddress", "ip_address"},
	FieldUserAgent: {"ua", "agent", "useragent", "user-agent", "user_agent"},
	FieldIPVersion: {"version", "type", "ipv", "ipver", "ipversion", "ip_version", "ip-version"},
	FieldReverseDNS: {
		"reverse-dns", "dns", "rdns", "reverse", "reversedns", "host", "hostname", "arpa", "rev",
	},
	FieldCountry:     {"country", "region"},
	FieldCountryCode: {"country_code", "region_code", "country-code", "region-code", "code"},
	FieldCity:        {"city", "area"},
	FieldASNFull: {
		"asn-full", "asfull", "fullas", "asnfull", "fullasn", "ispfull", "fullisp", "as_full",
		"full_as", "full_asn", "isp_full", "full_isp", "asinfo", "asninfo", "as_info",
		"asn_info", "isp_info", "ispinfo",
	},
	FieldASNNumber: {
		"asn-number", "as", "asn", "asnum", "asnumber", "as_number", "isp_num", "isp_number",
		"isp_asn",
	},
	FieldASNName:  {"asn-name", "asname", "ispname", "isp", "as_name", "isp_name"},
	FieldPostcode: {"post", "postal", "postcode", "post_code", "zip", "zipcode", "zip_code"},
	FieldLocation: {
		"loc", "locate", "location", "countrycity", "citycountry", "country_city", "city_country",
	},
	FieldCoordinates: {
		"latlon", "latlong", "latitudelongitude", "pos", "position", "cord", "coord", "coords",
		"coordinate", "coordinates", "co-ordinates",
	},
	FieldLatitude:  {"lat", "latitude"},
	FieldLongitude: {"lon", "long", "longitude"},
	FieldAll:       {"all", "full", "info", "information"},
}

// aliasIndex is the reverse of fieldAliases.
var aliasIndex = func() map[string]Field {
	idx := map[string]Field{}
	for f, aliases := range fieldAliases {
		for _, a := range aliases {
			idx[a] = f
		}
	}
	return idx
}()

// FieldAliases returns the names selecting f.
func FieldAliases(f Field) []string {
	return append([]string(nil), fieldAliases[f]...)
}

// ParseField returns the field name selects, matched case-insensitively.
// Unknown names select FieldAddress.
func ParseField(name string) Field {
	if f, ok := aliasIndex[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f
	}
	return FieldAddress
}

// Flat renders one field of rec as plain text, without a trailing newline
// except for FieldAll, whose every line is newline-terminated.
func Flat(rec *models.LookupRecord, name string) string {
	g := rec.GeoOrEmpty()

	switch ParseField(name) {
	case FieldUserAgent:
		return rec.UserAgent
	case FieldIPVersion:
		return string(rec.IPType)
	case FieldReverseDNS:
		return rec.Hostname
	case FieldCountry:
		return g.Country
	case FieldCountryCode:
		return g.CountryCode
	case FieldCity:
		return g.City
	case FieldASNFull:
		return g.ASName + "\nAS" + asNumber(g)
	case FieldASNNumber:
		return asNumber(g)
	case FieldASNName:
		return g.ASName
	case FieldPostcode:
		return g.Postcode
	case FieldLocation:
		return location(g)
	case FieldCoordinates:
		if !g.HasCoordinates() {
			return ""
		}
		return fmt.Sprintf("%.4f, %.4f", *g.Lat, *g.Long)
	case FieldLatitude:
		return coordinate(g.Lat)
	case FieldLongitude:
		return coordinate(g.Long)
	case FieldAll:
		return all(rec, g)
	default:
		return rec.IP
	}
}

func asNumber(g *models.GeoBlock) string {
	if g.ASNumber == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(g.ASNumber), 10)
}

func coordinate(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// location joins the known parts as "City, Postcode, Country".
func location(g *models.GeoBlock) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{g.City, g.Postcode, g.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func all(rec *models.LookupRecord, g *models.GeoBlock) string {
	var b strings.Builder
	lines := []struct{ label, val string }{
		{"IP", rec.IP},
		{"Version", string(rec.IPType)},
		{"Hostname", rec.Hostname},
		{"UserAgent", rec.UserAgent},
		{"Country", g.Country},
		{"CountryCode", g.CountryCode},
		{"City", g.City},
		{"Postcode", g.Postcode},
		{"Lat", coordinate(g.Lat)},
		{"Long", coordinate(g.Long)},
		{"ASNum", asNumber(g)},
		{"ASName", g.ASName},
		{"Network", g.Network},
	}
	for _, l := range lines {
		b.WriteString(l.label)
		b.WriteString(": ")
		b.WriteString(l.val)
		b.WriteByte('\n')
	}
	return b.String()
}
