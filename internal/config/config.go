package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v7"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug   bool `env:"DEBUG" envDefault:"false"`
	APIOnly bool `env:"API_ONLY" envDefault:"false"`

	Server    ServerConfig
	Lookup    LookupConfig
	GeoIP     GeoIPConfig
	RDNS      RDNSConfig
	Cache     CacheConfig
	Hosts     HostsConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
	Logger    LoggerConfig

	SentryDSN string `env:"SENTRY_DSN"`
}

type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"127.0.0.1"`
	Port            int           `env:"PORT" envDefault:"5111"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

// Addr returns the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type LookupConfig struct {
	UseIPHeader bool   `env:"USE_IP_HEADER" envDefault:"true"`
	IPHeader    string `env:"IP_HEADER" envDefault:"X-REAL-IP"`

	// UseFakeIPs defaults to the value of DEBUG.
	UseFakeIPs bool   `env:"USE_FAKE_IPS"`
	FakeV4     string `env:"FAKE_V4" envDefault:"185.130.44.140"`
	FakeV6     string `env:"FAKE_V6" envDefault:"2a07:e01:123::456"`

	MaxAddresses     int  `env:"MAX_ADDRESSES" envDefault:"20"`
	ResolveHostnames bool `env:"RESOLVE_HOSTNAMES" envDefault:"false"`
	BatchWorkers     int  `env:"BATCH_WORKERS" envDefault:"8"`
}

type GeoIPConfig struct {
	Path     string `env:"GEOIP_PATH" envDefault:"/usr/local/var/GeoIP"`
	Prefix   string `env:"GEOIP_PREFIX" envDefault:"GeoLite2-"`
	Locale   string `env:"GEOIP_LOCALE" envDefault:"en"`
	CacheSec int    `env:"GEOIP_CACHE_SEC" envDefault:"600"`
}

// CacheTTL returns how long merged GeoIP results are cached
func (g GeoIPConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheSec) * time.Second
}

type RDNSConfig struct {
	Server   string        `env:"RDNS_SERVER"`
	Timeout  time.Duration `env:"RDNS_TIMEOUT" envDefault:"2s"`
	CacheSec int           `env:"RDNS_CACHE_SEC" envDefault:"3600"`
}

// CacheTTL returns how long reverse DNS results are cached
func (r RDNSConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheSec) * time.Second
}

type CacheConfig struct {
	Adapter     string        `env:"CACHE_ADAPTER"`
	InitOnStart bool          `env:"CACHE_ADAPTER_INIT" envDefault:"true"`
	DialTimeout time.Duration `env:"CACHE_DIAL_TIMEOUT" envDefault:"2s"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	MemcachedServers []string `env:"MEMCACHED_SERVERS" envDefault:"localhost:11211" envSeparator:","`

	LevelDBPath string `env:"LEVELDB_PATH" envDefault:"cache.ldb"`
	LRUSize     int    `env:"CACHE_LRU_SIZE" envDefault:"10000"`
}

// RedisAddr returns the host:port of the Redis server
func (c CacheConfig) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

type HostsConfig struct {
	MainHost    string `env:"MAIN_HOST" envDefault:"myip.privex.io"`
	V4Subdomain string `env:"V4_SUBDOMAIN" envDefault:"v4"`
	V6Subdomain string `env:"V6_SUBDOMAIN" envDefault:"v6"`
	V4Host      string `env:"V4_HOST"`
	V6Host      string `env:"V6_HOST"`

	// ForceMainHost defaults to the value of DEBUG.
	ForceMainHost bool `env:"FORCE_MAIN_HOST"`
}

type RateLimitConfig struct {
	// RPS of zero disables rate limiting.
	RPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"0"`
	Burst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

type SchedulerConfig struct {
	GeoIPReloadSchedule string `env:"GEOIP_RELOAD_SCHEDULE" envDefault:"@daily"`
	CacheProbeSchedule  string `env:"CACHE_PROBE_SCHEDULE" envDefault:"@every 5m"`
}

type LoggerConfig struct {
	// Level defaults to debug when DEBUG is set, warning otherwise.
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
	File   string `env:"LOG_FILE"`
}

func Load() (*Config, error) {
	// It's okay if .env file doesn't exist in production
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	applyDebugDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDebugDefaults fills the settings whose default follows DEBUG
func applyDebugDefaults(cfg *Config) {
	if _, ok := os.LookupEnv("USE_FAKE_IPS"); !ok {
		cfg.Lookup.UseFakeIPs = cfg.Debug
	}
	if _, ok := os.LookupEnv("FORCE_MAIN_HOST"); !ok {
		cfg.Hosts.ForceMainHost = cfg.Debug
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "warning"
		if cfg.Debug {
			cfg.Logger.Level = "debug"
		}
	}
}

// Validate checks the values that cannot be defaulted
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 1 || c.Server.Port > 65535:
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	case c.Lookup.MaxAddresses < 1:
		return fmt.Errorf("MAX_ADDRESSES must be at least 1, got %d", c.Lookup.MaxAddresses)
	case c.Lookup.BatchWorkers < 1:
		return fmt.Errorf("BATCH_WORKERS must be at least 1, got %d", c.Lookup.BatchWorkers)
	case c.GeoIP.CacheSec <= 0:
		return fmt.Errorf("GEOIP_CACHE_SEC must be positive, got %d", c.GeoIP.CacheSec)
	case c.RDNS.CacheSec <= 0:
		return fmt.Errorf("RDNS_CACHE_SEC must be positive, got %d", c.RDNS.CacheSec)
	case c.RateLimit.RPS < 0:
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.RateLimit.RPS)
	}
	return nil
}
