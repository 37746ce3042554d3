package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/myip/internal/models"
	"github.com/kyvra-tech/myip/internal/negotiate"
	"github.com/kyvra-tech/myip/internal/render"
	"github.com/kyvra-tech/myip/internal/services"
	"github.com/kyvra-tech/myip/internal/web"
	"github.com/kyvra-tech/myip/pkg/metrics"
)

// flatDivider separates the entries of a plain-text batch response.
var flatDivider = strings.Repeat("=", 58)

// LookupConfig configures a LookupHandler
type LookupConfig struct {
	MaxAddresses int
	Hosts        web.HostConfig
}

// LookupHandler serves the address lookup pages and API
type LookupHandler struct {
	resolver *services.IPResolver
	builder  *services.RecordBuilder
	decider  negotiate.Decider
	cfg      LookupConfig
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

// NewLookupHandler creates a new lookup handler
func NewLookupHandler(
	resolver *services.IPResolver,
	builder *services.RecordBuilder,
	decider negotiate.Decider,
	cfg LookupConfig,
	logger *logrus.Logger,
	m *metrics.Metrics,
) *LookupHandler {
	if cfg.MaxAddresses <= 0 {
		cfg.MaxAddresses = 20
	}
	return &LookupHandler{
		resolver: resolver,
		builder:  builder,
		decider:  decider,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

// wanted returns the negotiated format.  A "format" parameter, even an empty
// one, replaces the URL suffix.
func (h *LookupHandler) wanted(c *gin.Context, p params, suffix string) negotiate.Format {
	explicit := suffix
	if p.has("format") {
		explicit = p.first("format")
	}

	f := h.decider.Decide(c.GetHeader("Accept"), explicit)
	h.metrics.RecordFormat(f.String())
	return f
}

func userAgent(c *gin.Context) string {
	ua := c.GetHeader("User-Agent")
	if ua == "" {
		return models.DefaultUserAgent
	}
	return ua
}

// Index looks up the caller's own address.  HTML is the default representation.
func (h *LookupHandler) Index(c *gin.Context) {
	h.index(c, "")
}

func (h *LookupHandler) index(c *gin.Context, suffix string) {
	p := requestParams(c)
	wanted := h.wanted(c, p, suffix)
	rec := h.builder.Build(c.Request.Context(), h.resolver.Resolve(c.Request), userAgent(c))

	switch wanted {
	case negotiate.JSON, negotiate.YAML:
		h.encode(c, http.StatusOK, wanted, rec)
	case negotiate.Text:
		h.text(c, http.StatusOK, render.Flat(rec, flatField(p, ""))+"\n")
	default:
		h.page(c, rec)
	}
}

// Lookup looks up the address given in the path or parameters, or the
// caller's address when none is given.  Several addresses may be given as
// a batch.
func (h *LookupHandler) Lookup(c *gin.Context) {
	h.lookup(c, "", c.Param("ip"), c.Param("field"))
}

func (h *LookupHandler) lookup(c *gin.Context, suffix, pathIP, pathField string) {
	p := requestParams(c)
	wanted := h.wanted(c, p, suffix)
	ua := userAgent(c)

	flat := pathField != "" || wanted == negotiate.Text
	for _, k := range fieldKeys {
		flat = flat || p.has(k)
	}

	if ips := p.list(batchKeys...); len(ips) > 0 {
		h.batch(c, wanted, flat, flatField(p, pathField), ips, ua)
		return
	}

	ip := p.first(addressKeys...)
	if ip == "" {
		ip = pathIP
	}
	if ip == "" {
		ip = h.resolver.Resolve(c.Request)
	}

	rec := h.builder.Build(c.Request.Context(), ip, ua)
	switch {
	case flat:
		h.text(c, http.StatusOK, render.Flat(rec, flatField(p, pathField))+"\n")
	case wanted == negotiate.YAML:
		h.encode(c, http.StatusOK, negotiate.YAML, rec)
	default:
		h.encode(c, http.StatusOK, negotiate.JSON, rec)
	}
}

func (h *LookupHandler) batch(c *gin.Context, wanted negotiate.Format, flat bool, field string, ips []string, ua string) {
	h.metrics.RecordBatch(len(ips))

	if len(ips) > h.cfg.MaxAddresses {
		appErr := models.NewTooManyAddressesError(h.cfg.MaxAddresses)
		h.logger.WithFields(logrus.Fields{
			"count": len(ips),
			"max":   h.cfg.MaxAddresses,
		}).Info("Rejected batch lookup")

		switch {
		case flat:
			h.text(c, appErr.StatusCode, appErr.FlatString())
		case wanted == negotiate.YAML:
			h.encode(c, appErr.StatusCode, negotiate.YAML, appErr)
		default:
			h.encode(c, appErr.StatusCode, negotiate.JSON, appErr)
		}
		return
	}

	recs := h.builder.BuildMany(c.Request.Context(), ips, ua)

	if flat {
		var b strings.Builder
		b.WriteString(flatDivider + "\n")
		for _, rec := range recs {
			b.WriteString(render.Flat(rec, field))
			b.WriteString("\n\n" + flatDivider + "\n")
		}
		h.text(c, http.StatusOK, b.String())
		return
	}

	byIP := render.NewOrderedMap()
	for i, rec := range recs {
		byIP.Set(ips[i], rec)
	}

	if wanted == negotiate.YAML {
		wrapped := render.NewOrderedMap()
		wrapped.Set("addresses", byIP)
		h.encode(c, http.StatusOK, negotiate.YAML, wrapped)
		return
	}
	h.encode(c, http.StatusOK, negotiate.JSON, byIP)
}

// flatField returns the plain-text field to render: the path segment, then a
// type or dtype parameter, then "all".
func flatField(p params, pathField string) string {
	if pathField != "" {
		return pathField
	}
	if f := p.first(fieldKeys...); f != "" {
		return f
	}
	return string(render.FieldAll)
}

// Flat renders one field of the caller's record as plain text.  With no field
// the address itself is returned.
func (h *LookupHandler) Flat(c *gin.Context) {
	h.metrics.RecordFormat(negotiate.Text.String())
	rec := h.builder.Build(c.Request.Context(), h.resolver.Resolve(c.Request), userAgent(c))
	h.text(c, http.StatusOK, render.Flat(rec, c.Param("field"))+"\n")
}

// Docs renders the API documentation page.
func (h *LookupHandler) Docs(c *gin.Context) {
	type fieldDoc struct {
		Name    string
		Aliases string
	}

	fields := make([]fieldDoc, 0, len(render.Fields()))
	for _, f := range render.Fields() {
		fields = append(fields, fieldDoc{
			Name:    string(f),
			Aliases: strings.Join(render.FieldAliases(f), ", "),
		})
	}

	data := h.hostData(c)
	data["max_addresses"] = h.cfg.MaxAddresses
	data["fields"] = fields
	c.HTML(http.StatusOK, web.APITemplate, data)
}

// NoRoute serves the format-suffixed paths, /index.<fmt> and
// /lookup.<fmt>[/<ip>[/<field>]], and answers 404 for anything else.
func (h *LookupHandler) NoRoute(c *gin.Context) {
	path := c.Request.URL.Path

	if rest, ok := strings.CutPrefix(path, "/index."); ok {
		if suffix := strings.TrimSuffix(rest, "/"); suffix != "" && !strings.Contains(suffix, "/") {
			h.index(c, suffix)
			return
		}
	}

	if rest, ok := strings.CutPrefix(path, "/lookup."); ok {
		parts := strings.SplitN(rest, "/", 3)
		if parts[0] != "" {
			var ip, field string
			if len(parts) > 1 {
				ip = parts[1]
			}
			if len(parts) > 2 {
				field = strings.TrimSuffix(parts[2], "/")
			}
			h.lookup(c, parts[0], ip, field)
			return
		}
	}

	appErr := models.NewNotFoundError("The requested URL was not found on the server.")
	h.encode(c, appErr.StatusCode, negotiate.JSON, appErr)
}

func (h *LookupHandler) hostData(c *gin.Context) gin.H {
	hosts := h.cfg.Hosts.HostsFor(c.Request.Host)
	return gin.H{
		"host":      hosts.Host,
		"v4_host":   hosts.V4Host,
		"v6_host":   hosts.V6Host,
		"main_host": hosts.MainHost,
	}
}

func (h *LookupHandler) page(c *gin.Context, rec *models.LookupRecord) {
	data := h.hostData(c)
	data["ip"] = rec.IP
	data["ip_type"] = string(rec.IPType)
	data["ip_valid"] = rec.IPValid
	data["hostname"] = rec.Hostname
	data["user_agent"] = rec.UserAgent
	data["error"] = rec.Error
	data["messages"] = rec.Messages
	data["geo"] = rec.Geo
	c.HTML(http.StatusOK, web.IndexTemplate, data)
}

func (h *LookupHandler) text(c *gin.Context, status int, body string) {
	c.Data(status, negotiate.Text.ContentType(), []byte(body))
}

// encode writes v as JSON or YAML.
func (h *LookupHandler) encode(c *gin.Context, status int, f negotiate.Format, v any) {
	var (
		body []byte
		err  error
	)
	if f == negotiate.YAML {
		body, err = render.YAML(v)
	} else {
		f = negotiate.JSON
		body, err = render.JSON(v)
	}

	if err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   true,
			"code":    models.ErrCodeInternal,
			"message": "Failed to encode response",
		})
		return
	}
	c.Data(status, f.ContentType(), body)
}
