package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/myip/internal/cache"
	"github.com/kyvra-tech/myip/internal/config"
	"github.com/kyvra-tech/myip/internal/errcoll"
	"github.com/kyvra-tech/myip/internal/geoip"
	"github.com/kyvra-tech/myip/internal/handlers"
	"github.com/kyvra-tech/myip/internal/middleware"
	"github.com/kyvra-tech/myip/internal/negotiate"
	"github.com/kyvra-tech/myip/internal/rdns"
	"github.com/kyvra-tech/myip/internal/scheduler"
	"github.com/kyvra-tech/myip/internal/services"
	"github.com/kyvra-tech/myip/internal/web"
	"github.com/kyvra-tech/myip/pkg/logger"
	"github.com/kyvra-tech/myip/pkg/metrics"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger := logger.NewWithOptions(logger.Options{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		File:   cfg.Logger.File,
	})

	errColl, err := errcoll.New(errcoll.Options{
		DSN:         cfg.SentryDSN,
		Environment: environment(cfg.Debug),
		Release:     version,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize error reporting")
	}
	defer errColl.Flush()

	m := metrics.NewMetrics()

	// Select the cache backend
	store, err := buildCache(cfg, appLogger, m)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize cache")
	}
	defer store.Close()

	// Open the GeoIP databases
	provider := geoip.NewProvider(geoip.Config{Dir: cfg.GeoIP.Path, Prefix: cfg.GeoIP.Prefix}, appLogger)
	if err := provider.Reload(); err != nil {
		appLogger.WithError(err).Warn("No GeoIP database could be opened, lookups will report the source as unavailable")
	}
	defer provider.Close()

	// Initialize services
	geoCache := services.NewGeoCache(provider, store, services.GeoCacheConfig{
		TTL:    cfg.GeoIP.CacheTTL(),
		Locale: cfg.GeoIP.Locale,
	}, appLogger, m)
	rdnsCache := services.NewRDNSCache(rdns.New(cfg.RDNS.Server, cfg.RDNS.Timeout), store, cfg.RDNS.CacheTTL(), appLogger, m)
	builder := services.NewRecordBuilder(geoCache, rdnsCache, services.RecordBuilderConfig{
		ResolveHostnames: cfg.Lookup.ResolveHostnames,
		Workers:          cfg.Lookup.BatchWorkers,
	}, appLogger)
	resolver := services.NewIPResolver(services.IPResolverConfig{
		UseHeader:  cfg.Lookup.UseIPHeader,
		Header:     cfg.Lookup.IPHeader,
		UseFakeIPs: cfg.Lookup.UseFakeIPs,
		FakeV4:     cfg.Lookup.FakeV4,
		FakeV6:     cfg.Lookup.FakeV6,
	})

	// Initialize scheduler
	cronScheduler := scheduler.NewCronScheduler(scheduler.Config{
		GeoIPReloadSchedule: cfg.Scheduler.GeoIPReloadSchedule,
		CacheProbeSchedule:  cfg.Scheduler.CacheProbeSchedule,
	}, provider, store, m, errColl, appLogger)
	if err := cronScheduler.Start(); err != nil {
		appLogger.WithError(err).Fatal("Failed to start scheduler")
	}
	defer cronScheduler.Stop()

	// Initialize HTTP handlers
	lookupHandler := handlers.NewLookupHandler(
		resolver,
		builder,
		negotiate.Decider{APIOnly: cfg.APIOnly},
		handlers.LookupConfig{
			MaxAddresses: cfg.Lookup.MaxAddresses,
			Hosts: web.HostConfig{
				MainHost:      cfg.Hosts.MainHost,
				V4Subdomain:   cfg.Hosts.V4Subdomain,
				V6Subdomain:   cfg.Hosts.V6Subdomain,
				V4Host:        cfg.Hosts.V4Host,
				V6Host:        cfg.Hosts.V6Host,
				ForceMainHost: cfg.Hosts.ForceMainHost,
			},
		},
		appLogger,
		m,
	)
	healthHandler := handlers.NewHealthHandler(store, provider, appLogger, version)

	// Setup Gin router
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(appLogger, m))
	router.Use(middleware.RecoveryWithWriter(appLogger, errColl.NotifyPanic))
	router.Use(middleware.Security())
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	if cfg.RateLimit.RPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, func(c *gin.Context) string {
			return resolver.Resolve(c.Request)
		}, appLogger, m)
		defer limiter.Stop()
		router.Use(limiter.Middleware())
		healthHandler.SetRateLimiter(limiter)
	}

	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	templates, err := web.Templates()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to parse templates")
	}
	router.SetHTMLTemplate(templates)

	handlers.RegisterRoutes(router, lookupHandler, healthHandler)

	// Start server
	serverAddr := cfg.Server.Addr()
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.WithFields(logrus.Fields{
			"addr":    serverAddr,
			"version": version,
			"cache":   store.Name(),
		}).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}

// buildCache returns the cache store.  With CACHE_ADAPTER_INIT the backend is
// chosen and probed now, otherwise on first use.
func buildCache(cfg *config.Config, appLogger *logrus.Logger, m *metrics.Metrics) (*cache.Lazy, error) {
	cands, err := cache.Candidates(cache.Config{
		Adapter:          cfg.Cache.Adapter,
		RedisAddr:        cfg.Cache.RedisAddr(),
		RedisDB:          cfg.Cache.RedisDB,
		RedisPassword:    cfg.Cache.RedisPassword,
		MemcachedServers: cfg.Cache.MemcachedServers,
		LevelDBPath:      cfg.Cache.LevelDBPath,
		LRUSize:          cfg.Cache.LRUSize,
		DialTimeout:      cfg.Cache.DialTimeout,
	})
	if err != nil {
		return nil, err
	}

	selectStore := func(ctx context.Context) (cache.Store, error) {
		s, err := cache.Select(ctx, cands, appLogger)
		if err != nil {
			return nil, err
		}
		m.SetCacheBackend(s.Name())
		m.SetCacheHealthy(true)
		return s, nil
	}

	if !cfg.Cache.InitOnStart {
		return cache.NewLazy(selectStore), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := selectStore(ctx)
	if err != nil {
		return nil, err
	}
	return cache.NewReady(s), nil
}

func environment(debug bool) string {
	if debug {
		return "development"
	}
	return "production"
}
