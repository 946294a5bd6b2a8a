// Package packops assembles the suggestion pipeline from configuration.
//
// The individual packages compose freely; this package is the canonical
// wiring for a deployed instance: redis behind the circuit-breaking
// adapter, the generative backend, weather enrichment, the SQLite store,
// rate limiting, identity resolution, and telemetry.
package packops

import (
	"context"
	"fmt"

	"github.com/jonwraymond/packops/cache"
	"github.com/jonwraymond/packops/config"
	"github.com/jonwraymond/packops/generate"
	"github.com/jonwraymond/packops/identity"
	"github.com/jonwraymond/packops/observe"
	"github.com/jonwraymond/packops/ratelimit"
	"github.com/jonwraymond/packops/store"
	"github.com/jonwraymond/packops/suggest"
	"github.com/jonwraymond/packops/weather"
)

// App is a fully wired suggestion pipeline.
type App struct {
	Service  *suggest.Service
	Identity *identity.Resolver
	Store    *store.Store
	Observer observe.Observer

	cache cache.Cache
}

// Build wires an App from configuration. Optional dependencies that are
// not configured (redis, gemini, weather) are left out and the service
// runs in its degraded shape for them; the store is required.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: cfg.Observe.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.Observe.TracingExporter != "" && cfg.Observe.TracingExporter != "none",
			Exporter:  cfg.Observe.TracingExporter,
			SamplePct: cfg.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  cfg.Observe.MetricsExporter != "" && cfg.Observe.MetricsExporter != "none",
			Exporter: cfg.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.Observe.LogLevel,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("packops: observer: %w", err)
	}

	metrics, err := observe.NewMetrics(obs.Meter())
	if err != nil {
		return nil, fmt.Errorf("packops: metrics: %w", err)
	}

	var shared cache.Cache
	if cfg.Redis.Addr != "" {
		backend, err := cache.NewRedis(cache.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			OpTimeout: cfg.Breaker.OpTimeout.Std(),
		})
		if err != nil {
			return nil, fmt.Errorf("packops: redis: %w", err)
		}
		shared = cache.NewBreakerCache(backend, cache.BreakerCacheConfig{
			MaxFailures: cfg.Breaker.MaxFailures,
			Cooldown:    cfg.Breaker.Cooldown.Std(),
			OpTimeout:   cfg.Breaker.OpTimeout.Std(),
		})
	}

	var backend generate.Backend
	if cfg.Gemini.APIKey != "" {
		backend = generate.NewGemini(generate.GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
	}

	var wx *weather.Provider
	if cfg.Weather.APIKey != "" {
		wx = weather.New(weather.Config{
			APIKey: cfg.Weather.APIKey,
			Units:  cfg.Weather.Units,
		}, shared)
	}

	st, err := store.Open(store.Config{Path: cfg.Store.Path})
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(shared, ratelimit.Config{
		Default: ratelimit.Rule{
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window.Std(),
		},
	})

	resolver := identity.NewResolver(identity.Config{
		SigningKey:     []byte(cfg.Auth.SigningKey),
		PrincipalClaim: cfg.Auth.PrincipalClaim,
	})

	service := suggest.New(suggest.Options{
		Backend: backend,
		Cache:   shared,
		Weather: wx,
		Store:   st,
		Limiter: limiter,
		Policy: cache.Policy{
			DefaultTTL: cfg.Cache.TTL.Std(),
			MockTTL:    cfg.Cache.MockTTL.Std(),
			MaxTTL:     cfg.Cache.TTL.Std(),
		},
		GenerateTimeout: cfg.Gemini.Timeout.Std(),
		Logger:          obs.Logger(),
		Metrics:         metrics,
		Tracer:          observe.NewTracer(obs.Tracer()),
	})

	return &App{
		Service:  service,
		Identity: resolver,
		Store:    st,
		Observer: obs,
		cache:    shared,
	}, nil
}

// Close releases the App's resources.
func (a *App) Close(ctx context.Context) error {
	var first error
	if a.cache != nil {
		if err := a.cache.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.Observer != nil {
		if err := a.Observer.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
