package rdns

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/kyvra-tech/myip/pkg/errors"
)

// Client sends PTR queries directly to a single DNS server.
type Client struct {
	client *dns.Client
	server string
}

// NewClient returns a new *Client querying server, a host or host:port.  The
// port defaults to 53.
func NewClient(server string, timeout time.Duration) *Client {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	return &Client{
		client: &dns.Client{Net: "udp", Timeout: timeout},
		server: server,
	}
}

// type check
var _ Resolver = (*Client)(nil)

// LookupAddr implements the Resolver interface for *Client.
func (c *Client) LookupAddr(ctx context.Context, ip netip.Addr) (host string, err error) {
	arpa, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", errors.ErrReverseDNS, ip, err)
	}

	req := &dns.Msg{}
	req.SetQuestion(arpa, dns.TypePTR)
	req.RecursionDesired = true

	resp, _, err := c.client.ExchangeContext(ctx, req, c.server)
	if err != nil {
		return "", fmt.Errorf("%w: %s: querying %s: %w", errors.ErrReverseDNS, ip, c.server, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("%w: %s: %s", errors.ErrReverseDNS, ip, dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", fmt.Errorf("%w: %s: no PTR records", errors.ErrReverseDNS, ip)
}
