// Package app builds the explicit application context: one instance of each
// store wired to a shared gateway and session cache.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pettime/companion/internal/activitystore"
	"github.com/pettime/companion/internal/cache"
	"github.com/pettime/companion/internal/cache/memory"
	rediscache "github.com/pettime/companion/internal/cache/redis"
	"github.com/pettime/companion/internal/cache/sqlite"
	"github.com/pettime/companion/internal/config"
	"github.com/pettime/companion/internal/gateway"
	"github.com/pettime/companion/internal/gateway/httpapi"
	"github.com/pettime/companion/internal/petstore"
	"github.com/pettime/companion/internal/session"
	"github.com/pettime/companion/pkg/database"
	"github.com/pettime/companion/pkg/health"
	"github.com/pettime/companion/pkg/httpclient"
	"github.com/pettime/companion/pkg/tracing"
)

// Version is reported to the tracing backend and in the User-Agent.
const Version = "0.1.0"

// App owns every long-lived dependency of the client.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	API        *httpapi.Client
	Session    *session.Manager
	Pets       *petstore.Store
	Activities *activitystore.Store
	Health     *health.Registry
	Metrics    *prometheus.Registry

	cache          cache.Cache
	breaker        *httpclient.CircuitBreakerClient
	tracerShutdown func(context.Context) error
}

// New creates the application context, initializing all dependencies.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(initCtx, tracing.Config{
		ServiceName:    "pettime-companion",
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Insecure:       cfg.OTELInsecure,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	store, err := openCache(initCtx, cfg)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, fmt.Errorf("open session cache: %w", err)
	}
	logger.Debug("session cache ready", slog.String("backend", cfg.CacheBackend))

	// HTTP transport: pooled client, optional GET retries, circuit breaker.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.APITimeout
	httpCfg.MaxRetries = cfg.APIMaxRetries
	httpCfg.UserAgent = "pettime-companion/" + Version

	cbCfg := httpclient.DefaultCircuitBreakerConfig("pettime-api")
	cbCfg.MaxRequests = cfg.CBMaxRequests
	cbCfg.Interval = cfg.CBInterval
	cbCfg.Timeout = cfg.CBTimeout
	cbCfg.FailureRatio = cfg.CBFailureRatio
	cbCfg.MinRequests = cfg.CBMinRequests
	metrics := prometheus.NewRegistry()
	breaker := httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), cbCfg, metrics, logger)

	// The session manager is the token source, but it needs the API first.
	var sess *session.Manager
	tokens := gateway.TokenSourceFunc(func(ctx context.Context) (string, error) {
		return sess.AccessToken(ctx)
	})

	api := httpapi.New(cfg.APIURL, breaker, logger,
		httpapi.WithTokenSource(tokens),
		httpapi.WithRateLimit(cfg.APIRateLimitRPS, cfg.APIRateLimitBurst),
		httpapi.WithMetrics(httpapi.NewMetrics(metrics)),
	)
	sess = session.NewManager(api, store, logger)

	checks := health.NewRegistry()
	checks.Register("api", api.Ping)
	checks.Register("cache", func(ctx context.Context) error {
		_, _, err := store.Get(ctx, cache.KeyUser)
		return err
	})

	return &App{
		Config:         cfg,
		Logger:         logger,
		API:            api,
		Session:        sess,
		Pets:           petstore.New(api, logger),
		Activities:     activitystore.New(api, logger),
		Health:         checks,
		Metrics:        metrics,
		cache:          store,
		breaker:        breaker,
		tracerShutdown: tracerShutdown,
	}, nil
}

// BreakerState reports the API circuit breaker state.
func (a *App) BreakerState() string {
	return a.breaker.State().String()
}

// Close flushes pending spans and releases the session cache.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	if err := a.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close session cache: %w", err))
	}
	return errors.Join(errs...)
}

func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheMemory:
		return memory.New(), nil
	case config.CacheSQLite:
		return sqlite.Open(cfg.CacheSQLitePath)
	case config.CacheRedis:
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Host = cfg.RedisHost
		redisCfg.Port = cfg.RedisPort
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB
		client, err := database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		return rediscache.New(client, cfg.CacheKeyPrefix, cfg.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
