package services

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// UnknownIP is returned when no client address can be determined
const UnknownIP = "Unknown IP..."

// IPResolverConfig controls where the client address is read from
type IPResolverConfig struct {
	// UseHeader reads the address from Header instead of the peer address.
	UseHeader bool
	Header    string

	// UseFakeIPs replaces every resolved address with FakeV4 or FakeV6,
	// matching the family of the address that would have been returned.
	UseFakeIPs bool
	FakeV4     string
	FakeV6     string
}

// IPResolver determines the subject address of a request
type IPResolver struct {
	cfg IPResolverConfig
}

// NewIPResolver creates a new IP resolver
func NewIPResolver(cfg IPResolverConfig) *IPResolver {
	if cfg.Header == "" {
		cfg.Header = "X-REAL-IP"
	}
	return &IPResolver{cfg: cfg}
}

// Resolve returns the client address of req.  It never fails; UnknownIP is
// returned when the address is missing.
func (r *IPResolver) Resolve(req *http.Request) string {
	ip := r.resolve(req)
	if !r.cfg.UseFakeIPs {
		return ip
	}

	if addr, err := netip.ParseAddr(ip); err == nil && addr.Is6() && !addr.Is4In6() {
		return r.cfg.FakeV6
	}
	return r.cfg.FakeV4
}

func (r *IPResolver) resolve(req *http.Request) string {
	if r.cfg.UseHeader {
		v := req.Header.Get(r.cfg.Header)
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = v[:i]
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
		return UnknownIP
	}

	if req.RemoteAddr == "" {
		return UnknownIP
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		// No port, e.g. a unix socket peer or a bare address.
		host = req.RemoteAddr
	}
	if host == "" {
		return UnknownIP
	}
	return host
}
