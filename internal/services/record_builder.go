package services

import (
	"context"
	"net"
	"net/netip"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kyvra-tech/myip/internal/models"
	"github.com/kyvra-tech/myip/pkg/errors"
)

// RecordBuilderConfig configures a RecordBuilder
type RecordBuilderConfig struct {
	// ResolveHostnames lets host names be looked up in place of addresses.
	ResolveHostnames bool

	// Workers bounds the number of addresses of one batch looked up at once.
	Workers int
}

// RecordBuilder assembles lookup records from the geo and reverse DNS caches
type RecordBuilder struct {
	geo        *GeoCache
	rdns       *RDNSCache
	lookupHost func(ctx context.Context, host string) ([]netip.Addr, error)
	cfg        RecordBuilderConfig
	logger     *logrus.Logger
}

// NewRecordBuilder creates a new record builder
func NewRecordBuilder(geo *GeoCache, rdnsCache *RDNSCache, cfg RecordBuilderConfig, logger *logrus.Logger) *RecordBuilder {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &RecordBuilder{
		geo:  geo,
		rdns: rdnsCache,
		lookupHost: func(ctx context.Context, host string) ([]netip.Addr, error) {
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Build returns the record for input.  Lookup failures are recorded in the
// record's messages and never returned.
func (b *RecordBuilder) Build(ctx context.Context, input, userAgent string) *models.LookupRecord {
	rec := models.NewLookupRecord(input, userAgent)

	addr, err := b.parse(ctx, input)
	if err != nil {
		b.logger.WithError(err).WithField("ip", input).Warn("The IP address was not valid")
		rec.AddMessage(models.MsgInvalidAddress)
		return rec
	}

	rec.IP = addr.String()
	rec.IPType = models.IPTypeOf(addr)
	rec.IPValid = true
	rec.Hostname, _ = b.rdns.Resolve(ctx, addr, "", false)

	res, _ := b.geo.Lookup(ctx, addr, false)
	if res.Status == GeoNotFound {
		msg := NotFoundMessage(rec.IP, input)
		b.logger.Info(msg)

		rec.Geo = models.NewGeoError(msg)
		rec.Error = true
		rec.AddMessage(msg)
		return rec
	}

	block := res.Block
	rec.Geo = &block
	return rec
}

// BuildMany builds the records of inputs concurrently.  The result has the
// same order as inputs.
func (b *RecordBuilder) BuildMany(ctx context.Context, inputs []string, userAgent string) []*models.LookupRecord {
	recs := make([]*models.LookupRecord, len(inputs))

	var g errgroup.Group
	g.SetLimit(b.cfg.Workers)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			recs[i] = b.Build(ctx, in, userAgent)
			return nil
		})
	}
	_ = g.Wait()

	return recs
}

// parse returns the address input denotes, preferring IPv6 when a host name
// resolves to both families.
func (b *RecordBuilder) parse(ctx context.Context, input string) (netip.Addr, error) {
	input = strings.TrimSpace(input)

	addr, err := netip.ParseAddr(input)
	if err == nil {
		return addr, nil
	}
	if !b.cfg.ResolveHostnames || input == "" || input == UnknownIP {
		return netip.Addr{}, errors.Wrapf(errors.ErrInvalidAddress, "%q", input)
	}

	addrs, err := b.lookupHost(ctx, input)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(errors.ErrInvalidAddress, "resolving %q: %v", input, err)
	}

	var v4 netip.Addr
	for _, a := range addrs {
		a = a.Unmap()
		if a.Is6() {
			return a, nil
		}
		if !v4.IsValid() {
			v4 = a
		}
	}
	if v4.IsValid() {
		return v4, nil
	}
	return netip.Addr{}, errors.Wrapf(errors.ErrInvalidAddress, "%q has no addresses", input)
}
