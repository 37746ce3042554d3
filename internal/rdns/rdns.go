// Package rdns resolves PTR records for IP addresses.
package rdns

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/kyvra-tech/myip/pkg/errors"
)

// Resolver returns the host name an address points back to.  Failures,
// including an answer without PTR records, wrap errors.ErrReverseDNS.
type Resolver interface {
	LookupAddr(ctx context.Context, ip netip.Addr) (host string, err error)
}

// System resolves names with the operating system resolver.
type System struct {
	resolver *net.Resolver
}

// NewSystem returns a new *System using net.DefaultResolver.
func NewSystem() *System {
	return &System{resolver: net.DefaultResolver}
}

// type check
var _ Resolver = (*System)(nil)

// LookupAddr implements the Resolver interface for *System.
func (s *System) LookupAddr(ctx context.Context, ip netip.Addr) (host string, err error) {
	names, err := s.resolver.LookupAddr(ctx, ip.String())
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", errors.ErrReverseDNS, ip, err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: %s: no PTR records", errors.ErrReverseDNS, ip)
	}
	return strings.TrimSuffix(names[0], "."), nil
}

// New returns a *Client when server is set and a *System otherwise.
func New(server string, timeout time.Duration) Resolver {
	if server == "" {
		return NewSystem()
	}
	return NewClient(server, timeout)
}
