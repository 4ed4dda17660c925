package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/pettime/companion/pkg/config"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "PETTIME_"

// Cache backends.
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// Config holds all configuration for the companion client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`

	// Remote API
	APIURL            string        `env:"API_URL" envDefault:"http://localhost:8080"`
	APITimeout        time.Duration `env:"API_TIMEOUT" envDefault:"15s"`
	APIMaxRetries     int           `env:"API_MAX_RETRIES" envDefault:"0"`
	APIRateLimitRPS   float64       `env:"API_RATE_LIMIT_RPS" envDefault:"10"`
	APIRateLimitBurst int           `env:"API_RATE_LIMIT_BURST" envDefault:"20"`

	// Circuit breaker
	CBMaxRequests  uint32        `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     time.Duration `env:"CB_INTERVAL" envDefault:"60s"`
	CBTimeout      time.Duration `env:"CB_TIMEOUT" envDefault:"30s"`
	CBFailureRatio float64       `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32        `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Session cache
	CacheBackend    string        `env:"CACHE_BACKEND" envDefault:"sqlite"`
	CacheSQLitePath string        `env:"CACHE_SQLITE_PATH" envDefault:"pettime-session.db"`
	CacheKeyPrefix  string        `env:"CACHE_KEY_PREFIX" envDefault:"pettime:"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"0s"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELInsecure   bool    `env:"OTEL_INSECURE" envDefault:"true"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from PETTIME_-prefixed environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadWithPrefix(cfg, EnvPrefix); err != nil {
		return nil, fmt.Errorf("load companion config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API_URL %q: must be an absolute http(s) URL", c.APIURL)
	}
	if c.Environment != "development" && u.Scheme != "https" {
		return fmt.Errorf("API_URL must use https in %q mode", c.Environment)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("invalid API_TIMEOUT: %s", c.APITimeout)
	}
	if c.APIMaxRetries < 0 {
		return fmt.Errorf("invalid API_MAX_RETRIES: %d", c.APIMaxRetries)
	}
	if c.APIRateLimitRPS < 0 {
		return fmt.Errorf("invalid API_RATE_LIMIT_RPS: %v", c.APIRateLimitRPS)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		return fmt.Errorf("invalid CB_FAILURE_RATIO: %v", c.CBFailureRatio)
	}

	switch c.CacheBackend {
	case CacheMemory:
	case CacheSQLite:
		if c.CacheSQLitePath == "" {
			return fmt.Errorf("CACHE_SQLITE_PATH is required for the sqlite cache")
		}
	case CacheRedis:
		if c.RedisPort < 1 || c.RedisPort > 65535 {
			return fmt.Errorf("invalid REDIS_PORT: %d", c.RedisPort)
		}
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q: want memory, sqlite or redis", c.CacheBackend)
	}

	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("invalid OTEL_SAMPLE_RATE: %v", c.OTELSampleRate)
	}
	return nil
}
