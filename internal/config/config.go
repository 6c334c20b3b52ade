package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/a-nagdy/anasityshop/pkg/config"
)

// Review store backends.
const (
	ReviewStorePostgres = "postgres"
	ReviewStoreMongo    = "mongodb"
)

// Config holds all configuration for the storefront API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Auth
	JWTSecret string `env:"JWT_SECRET,required"`
	JWTIssuer string `env:"JWT_ISSUER"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"anasityshop"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"anasityshop_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"anasityshop"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Review storage
	ReviewStore string `env:"REVIEW_STORE" envDefault:"postgres"`
	MongoURI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB     string `env:"MONGO_DB" envDefault:"anasityshop"`

	// Elasticsearch product search. An empty URL keeps search in SQL.
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"anasityshop_products"`

	// Redis (carts)
	RedisURL string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	CartTTL  time.Duration `env:"CART_TTL" envDefault:"168h"`

	// Kafka. An empty broker list disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// In-process caches
	CacheTTL           time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	CacheSweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"1m"`
	HTTPCacheMaxAge    int           `env:"HTTP_CACHE_MAX_AGE" envDefault:"60"`

	// Periodic full rating re-sync. Zero disables it.
	RatingResyncInterval time.Duration `env:"RATING_RESYNC_INTERVAL" envDefault:"1h"`

	// Review write rate limit, per client IP
	ReviewRateLimitRPS   float64 `env:"REVIEW_RATE_LIMIT_RPS" envDefault:"0.2"`
	ReviewRateLimitBurst int     `env:"REVIEW_RATE_LIMIT_BURST" envDefault:"5"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return load(nil)
}

func load(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, environ); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	switch c.ReviewStore {
	case ReviewStorePostgres:
	case ReviewStoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when REVIEW_STORE=%s", ReviewStoreMongo)
		}
	default:
		return fmt.Errorf("REVIEW_STORE must be %q or %q, got %q", ReviewStorePostgres, ReviewStoreMongo, c.ReviewStore)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.CacheSweepInterval <= 0 {
		return fmt.Errorf("CACHE_SWEEP_INTERVAL must be positive, got %s", c.CacheSweepInterval)
	}
	if c.CartTTL <= 0 {
		return fmt.Errorf("CART_TTL must be positive, got %s", c.CartTTL)
	}
	if c.RatingResyncInterval < 0 {
		return fmt.Errorf("RATING_RESYNC_INTERVAL must not be negative, got %s", c.RatingResyncInterval)
	}
	if c.ReviewRateLimitRPS <= 0 || c.ReviewRateLimitBurst < 1 {
		return fmt.Errorf("review rate limit needs a positive rate and burst")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// SearchEnabled reports whether product search uses Elasticsearch.
func (c *Config) SearchEnabled() bool {
	return c.ElasticsearchURL != ""
}

// KafkaEnabled reports whether domain events are published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
