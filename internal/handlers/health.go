package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/myip/internal/cache"
	"github.com/kyvra-tech/myip/internal/geoip"
	"github.com/kyvra-tech/myip/internal/models"
)

// GeoIPStatus reports the GeoIP databases in use
type GeoIPStatus interface {
	Status() []geoip.DatabaseStatus
}

// RateLimitStats reports the state of the request rate limiter
type RateLimitStats interface {
	GetStats() map[string]interface{}
}

type HealthHandler struct {
	store   cache.Store
	geo     GeoIPStatus
	limiter RateLimitStats
	logger  *logrus.Logger
	version string
}

func NewHealthHandler(store cache.Store, geo GeoIPStatus, logger *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		geo:     geo,
		logger:  logger,
		version: version,
	}
}

// SetRateLimiter adds the limiter's statistics to health responses.
func (h *HealthHandler) SetRateLimiter(l RateLimitStats) {
	h.limiter = l
}

// Health checks the cache backend and the GeoIP databases
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	dbs := h.geo.Status()
	loaded := 0
	for _, db := range dbs {
		if db.Loaded {
			loaded++
		}
	}

	if err := cache.Probe(ctx, h.store); err != nil {
		h.logger.WithError(err).WithField("backend", h.store.Name()).Error("Cache health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"code":      models.ErrCodeServiceUnavailable,
			"timestamp": time.Now().UTC(),
			"version":   h.version,
			"cache":     h.store.Name(),
			"geoip":     dbs,
			"error":     "cache unavailable",
		})
		return
	}

	status := "healthy"
	if loaded == 0 {
		status = "degraded"
	}

	resp := gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"cache":     h.store.Name(),
		"geoip":     dbs,
	}
	if h.limiter != nil {
		resp["rate_limit"] = h.limiter.GetStats()
	}
	c.JSON(http.StatusOK, resp)
}
