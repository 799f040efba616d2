package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration of the price-finder API service.
type Config struct {
	ServiceName string
	Env         string // "dev", "uat", "prod"
	LogLevel    string
	Port        int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	RedisAddr   string
	RedisDB     int
	RedisPass   string
	DatabaseURL string // empty disables the search log

	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration

	NATSURL       string // empty disables event publishing
	SearchSubject string
	StreamName    string

	// Session-scoped history
	HistoryCapacity int
	SessionTTL      time.Duration
	SessionCookie   string
	CookieSecure    bool

	// Catalog
	CatalogBaseURL   string
	ExchangeRateURL  string
	CatalogTimeout   time.Duration
	CatalogRetryMax  int
	CatalogRPS       int
	CatalogBurst     int
	CatalogCacheTTL  time.Duration
	ExchangeRateTTL  time.Duration
	CacheCleanupFreq time.Duration

	// Search log retention
	SearchLogRetention time.Duration
	PruneInterval      time.Duration

	// Optional service secrets (database_url, redis_pass) from AWS Secrets Manager.
	AWSRegion     string
	AWSSecretName string
	SecretsTTL    time.Duration
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName: GetEnv("SERVICE_NAME", "price-finder-api"),
		Env:         GetEnv("ENV", "dev"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		Port:        GetEnvInt("PORT", 5000),

		HTTPReadTimeout:  GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: GetEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		HTTPIdleTimeout:  GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    GetEnvInt("HTTP_BODY_LIMIT", 256*1024),

		RedisAddr:   GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     GetEnvInt("REDIS_DB", 0),
		RedisPass:   GetEnv("REDIS_PASS", ""),
		DatabaseURL: GetEnv("DATABASE_URL", ""),

		PGMaxConns:          GetEnvInt("PG_MAX_CONNS", 5),
		PGMinConns:          GetEnvInt("PG_MIN_CONNS", 1),
		PGMaxConnLifetime:   GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:   GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod: GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),

		NATSURL:       GetEnv("NATS_URL", ""),
		SearchSubject: GetEnv("SEARCH_SUBJECT", "evt.price_finder.search.v1"),
		StreamName:    GetEnv("STREAM_NAME", "PRICE_FINDER_EVENTS"),

		HistoryCapacity: GetEnvInt("HISTORY_CAPACITY", 20),
		SessionTTL:      GetEnvDuration("SESSION_TTL", 7*24*time.Hour),
		SessionCookie:   GetEnv("SESSION_COOKIE", "pf_session"),
		CookieSecure:    GetEnvBool("COOKIE_SECURE", false),

		CatalogBaseURL:   GetEnv("CATALOG_BASE_URL", "https://www.uniqlo.com"),
		ExchangeRateURL:  GetEnv("EXCHANGE_RATE_URL", "https://www.google.com/finance/quote/JPY-TWD"),
		CatalogTimeout:   GetEnvDuration("CATALOG_TIMEOUT", 15*time.Second),
		CatalogRetryMax:  GetEnvInt("CATALOG_RETRY_MAX", 2),
		CatalogRPS:       GetEnvInt("CATALOG_RPS", 5),
		CatalogBurst:     GetEnvInt("CATALOG_BURST", 10),
		CatalogCacheTTL:  GetEnvDuration("CATALOG_CACHE_TTL", 1*time.Hour),
		ExchangeRateTTL:  GetEnvDuration("EXCHANGE_RATE_TTL", 30*time.Minute),
		CacheCleanupFreq: GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),

		SearchLogRetention: GetEnvDuration("SEARCH_LOG_RETENTION", 90*24*time.Hour),
		PruneInterval:      GetEnvDuration("PRUNE_INTERVAL", 24*time.Hour),

		AWSRegion:     GetEnv("AWS_REGION", "ap-northeast-1"),
		AWSSecretName: GetEnv("AWS_SECRET_NAME", ""),
		SecretsTTL:    GetEnvDuration("SECRETS_TTL", 1*time.Hour),
	}
}
