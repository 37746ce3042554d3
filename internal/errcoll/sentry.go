// Package errcoll reports panics and unexpected errors to Sentry.
package errcoll

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/kyvra-tech/myip/internal/middleware"
)

// flushTimeout is the timeout for flushing sentry events on shutdown.
const flushTimeout = 2 * time.Second

// Options configures the Sentry client
type Options struct {
	DSN         string
	Environment string
	Release     string

	// Transport overrides the HTTP transport; used in tests.
	Transport sentry.Transport
}

// Collector sends events to a Sentry-like HTTP API.  A nil *Collector is
// valid and drops everything.
type Collector struct {
	client *sentry.Client
}

// New returns a collector for opts, or nil when no DSN is configured.
func New(opts Options) (*Collector, error) {
	if opts.DSN == "" {
		return nil, nil
	}

	cli, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		Release:          opts.Release,
		AttachStacktrace: true,
		Transport:        opts.Transport,
	})
	if err != nil {
		return nil, err
	}

	return &Collector{client: cli}, nil
}

// Enabled reports whether events are actually sent
func (c *Collector) Enabled() bool {
	return c != nil && c.client != nil
}

// Collect reports err with the given tags
func (c *Collector) Collect(ctx context.Context, err error, tags map[string]string) {
	if !c.Enabled() || err == nil {
		return
	}

	scope := sentry.NewScope()
	scope.SetTags(tags)

	_ = c.client.CaptureException(err, &sentry.EventHint{Context: ctx}, scope)
}

// NotifyPanic reports a panic recovered while serving c.  Its signature
// matches middleware.PanicNotifier.
func (c *Collector) NotifyPanic(gc *gin.Context, recovered interface{}) {
	if !c.Enabled() {
		return
	}

	hub := sentry.NewHub(c.client, sentry.NewScope())
	hub.Scope().SetRequest(gc.Request)
	if id := middleware.GetRequestID(gc); id != "" {
		hub.Scope().SetTag("request_id", id)
	}
	hub.Scope().SetTag("route", gc.FullPath())

	hub.RecoverWithContext(gc.Request.Context(), recovered)
}

// Flush waits for buffered events to be sent, for at most flushTimeout
func (c *Collector) Flush() bool {
	if !c.Enabled() {
		return true
	}
	return c.client.Flush(flushTimeout)
}

// type check
var _ middleware.PanicNotifier = (*Collector)(nil).NotifyPanic
