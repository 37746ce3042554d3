package models

import "net/netip"

// IPType is the address family of a looked up address
type IPType string

const (
	IPv4 IPType = "ipv4"
	IPv6 IPType = "ipv6"
)

// DefaultUserAgent is used when the request carries no User-Agent header
const DefaultUserAgent = "Empty User Agent"

// MsgInvalidAddress is recorded when the subject does not parse as an address
const MsgInvalidAddress = "Invalid IP address detected"

// IPTypeOf returns the family of addr
func IPTypeOf(addr netip.Addr) IPType {
	if addr.Is4() {
		return IPv4
	}
	return IPv6
}

// LookupRecord is the unit of response for a single address
type LookupRecord struct {
	IP        string
	IPType    IPType
	IPValid   bool
	Hostname  string
	UserAgent string
	Error     bool
	Messages  []string
	Geo       *GeoBlock
}

// NewLookupRecord creates an empty record for ip
func NewLookupRecord(ip, userAgent string) *LookupRecord {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &LookupRecord{
		IP:        ip,
		UserAgent: userAgent,
		Messages:  []string{},
	}
}

// AddMessage appends a diagnostic note to the record
func (r *LookupRecord) AddMessage(msg string) {
	r.Messages = append(r.Messages, msg)
}

// GeoOrEmpty returns the record's geo block, or an empty one when none is set
func (r *LookupRecord) GeoOrEmpty() *GeoBlock {
	if r.Geo == nil {
		return &GeoBlock{}
	}
	return r.Geo
}
