package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/kyvra-tech/myip/pkg/metrics"
)

// RegisterRoutes adds the service routes to r.  Paths with a format suffix,
// such as /index.json or /lookup.yml/1.1.1.1, are served by NoRoute since the
// router cannot match a parameter after a literal dot.
func RegisterRoutes(r *gin.Engine, lookup *LookupHandler, health *HealthHandler) {
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	both := func(path string, h gin.HandlerFunc) {
		r.GET(path, h)
		r.POST(path, h)
	}

	both("/", lookup.Index)
	both("/index", lookup.Index)

	both("/lookup", lookup.Lookup)
	both("/lookup/", lookup.Lookup)
	both("/lookup/:ip", lookup.Lookup)
	both("/lookup/:ip/:field", lookup.Lookup)

	both("/flat", lookup.Flat)
	both("/flat/", lookup.Flat)
	both("/flat/:field", lookup.Flat)

	r.GET("/api", lookup.Docs)
	r.GET("/api/", lookup.Docs)
	r.GET("/api.html", lookup.Docs)

	r.GET("/health", health.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.NoRoute(lookup.NoRoute)
}
