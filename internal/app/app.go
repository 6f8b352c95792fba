// Package app wires the pieces every service main needs: telemetry,
// the admin endpoints, the middleware stack, registry registration and
// the cache backend.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/joao-fontenele/shopflow/internal/cache"
	"github.com/joao-fontenele/shopflow/internal/config"
	"github.com/joao-fontenele/shopflow/internal/registry"
	"github.com/joao-fontenele/shopflow/internal/telemetry"
	"github.com/joao-fontenele/shopflow/internal/web"
)

const discoveryRefresh = 30 * time.Second

// Telemetry installs the tracer and meter providers. The returned
// shutdown flushes both.
func Telemetry(ctx context.Context, cfg config.Service, logger *slog.Logger) (http.Handler, func(), error) {
	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry)
	if err != nil {
		return nil, nil, fmt.Errorf("init tracer: %w", err)
	}
	metrics, shutdownMeter, err := telemetry.InitMeterProvider(cfg.Telemetry)
	if err != nil {
		_ = shutdownTracer(ctx)
		return nil, nil, fmt.Errorf("init meter: %w", err)
	}

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
		if err := shutdownMeter(ctx); err != nil {
			logger.Warn("failed to stop meter provider", "error", err)
		}
	}
	return metrics, shutdown, nil
}

// Mount adds /metrics, /admin/health and /admin/info to mux.
func Mount(mux *http.ServeMux, cfg config.Service, metrics http.Handler, checks map[string]web.Check, logger *slog.Logger) {
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	mux.HandleFunc("GET /admin/health", web.Health(logger, checks))
	mux.HandleFunc("GET /admin/info", web.Info(logger, cfg.Name, cfg.Telemetry.ServiceVersion))
}

// Handler wraps mux with the shared middleware stack and tracing.
func Handler(mux http.Handler, cfg config.Service, logger *slog.Logger) http.Handler {
	h := web.Chain(mux, web.RequestID, web.RequestLog(logger), web.CORS)
	return telemetry.NewHandler(h, cfg.Name)
}

// Resolver discovers peers through the registry when one is configured
// and falls back to the fixed SERVICE_URLS otherwise.
func Resolver(cfg config.Service, client *http.Client, logger *slog.Logger) registry.Resolver {
	if cfg.RegistryURL == "" {
		logger.Info("no registry configured, using static service urls", "urls", cfg.ServiceURLs)
		return registry.StaticResolver(cfg.ServiceURLs)
	}
	return registry.NewDiscoveryResolver(registry.NewClient(cfg.RegistryURL, client), discoveryRefresh)
}

// Register keeps this instance registered until ctx is done. It is a no-op
// without a registry.
func Register(ctx context.Context, cfg config.Service, client *http.Client, logger *slog.Logger) {
	if cfg.RegistryURL == "" {
		return
	}
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		logger.Error("cannot register with a non-numeric port", "port", cfg.Port)
		return
	}

	scheme := "http"
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		scheme = "https"
	}
	inst := registry.Instance{
		Host:           cfg.InstanceHost,
		Port:           port,
		Scheme:         scheme,
		HealthCheckURL: fmt.Sprintf("%s://%s:%d/admin/health", scheme, cfg.InstanceHost, port),
		Metadata:       map[string]string{"profile": cfg.Profile, "version": cfg.Telemetry.ServiceVersion},
	}

	reg := registry.NewRegistration(registry.NewClient(cfg.RegistryURL, client), cfg.Name, inst, cfg.RenewalInterval, logger)
	go func() {
		if err := reg.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("registration stopped", "error", err)
		}
	}()
}

// Backend is the chosen cache implementation plus what main needs to
// supervise it.
type Backend[V any] struct {
	Cache cache.Cache[V]
	// Check is nil for the in-process cache.
	Check web.Check
	Close func()
}

// Cache picks Redis when an address is configured and the in-process map
// otherwise.
func Cache[V any](ctx context.Context, cfg config.Redis, prefix string, logger *slog.Logger) (Backend[V], error) {
	if cfg.Addr == "" {
		logger.Info("using in-memory cache", "prefix", prefix)
		return Backend[V]{Cache: cache.NewMemory[V](), Close: func() {}}, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return Backend[V]{}, err
	}
	logger.Info("using redis cache", "addr", cfg.Addr, "prefix", prefix, "ttl", cfg.TTL)
	return Backend[V]{
		Cache: cache.NewRedis[V](client, prefix, cfg.TTL),
		Check: redisCheck(client),
		Close: func() { _ = client.Close() },
	}, nil
}

func redisCheck(client *redis.Client) web.Check {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
