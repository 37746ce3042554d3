package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kyvra-tech/myip/internal/models"
	"github.com/kyvra-tech/myip/pkg/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// KeyFunc extracts the rate limiting key of a request
type KeyFunc func(c *gin.Context) string

// RateLimiter applies a token bucket per client
type RateLimiter struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	logger  *logrus.Logger
	metrics *metrics.Metrics
	key     KeyFunc
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter allowing rps requests per second
// per client with bursts of up to burst requests.  A nil key uses c.ClientIP.
func NewRateLimiter(rps float64, burst int, key KeyFunc, logger *logrus.Logger, m *metrics.Metrics) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if key == nil {
		key = func(c *gin.Context) string { return c.ClientIP() }
	}

	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		logger:  logger,
		metrics: m,
		key:     key,
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	// Cleanup goroutine to remove idle clients
	go rl.cleanup()

	return rl
}

// Middleware returns a gin middleware handler
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.key(c)

		allowed, limiter := rl.allow(key)
		if rl.metrics != nil {
			rl.metrics.RecordRateLimit(allowed)
		}
		if allowed {
			c.Next()
			return
		}

		retry := rl.retryAfter(limiter)
		rl.logger.WithFields(logrus.Fields{
			"client":     key,
			"request_id": GetRequestID(c),
			"path":       c.Request.URL.Path,
		}).Warn("Rate limit exceeded")

		appErr := models.NewRateLimitError("Too many requests. Please try again later.").
			WithMetadata("retry_after", retry)
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
			"error":       true,
			"code":        appErr.Code,
			"message":     appErr.Message,
			"retry_after": retry,
		})
	}
}

// allow reports whether a request for key may proceed
func (rl *RateLimiter) allow(key string) (bool, *rate.Limiter) {
	now := rl.now()

	rl.mu.Lock()
	client, exists := rl.clients[key]
	if !exists {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = client
	}
	client.lastSeen = now
	rl.mu.Unlock()

	return client.limiter.AllowN(now, 1), client.limiter
}

// retryAfter returns the whole seconds until limiter grants another token
func (rl *RateLimiter) retryAfter(limiter *rate.Limiter) int {
	now := rl.now()
	r := limiter.ReserveN(now, 1)
	if !r.OK() {
		return 1
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)

	secs := int(math.Ceil(delay.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// cleanup periodically removes clients that have not been seen recently
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evict()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, client := range rl.clients {
		if now.Sub(client.lastSeen) > rl.idle {
			delete(rl.clients, key)
		}
	}
}

// Stop terminates the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"total_clients": len(rl.clients),
		"rps":           float64(rl.limit),
		"burst":         rl.burst,
	}
}

