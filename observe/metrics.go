package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records suggestion pipeline metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one end-to-end suggestion request with its
	// duration and error status.
	RecordRequest(ctx context.Context, duration time.Duration, err error)

	// RecordCacheLookup records a cache hit or miss on the suggestion path.
	RecordCacheLookup(ctx context.Context, hit bool)

	// RecordGeneration records a produced suggestion list by source
	// ("model" or "mock").
	RecordGeneration(ctx context.Context, source string)

	// RecordFallback records a degraded-path decision with its reason
	// (e.g. "generation_timeout", "cache_unavailable").
	RecordFallback(ctx context.Context, reason string)

	// RecordRateLimit records a rate-limit decision for a route.
	RecordRateLimit(ctx context.Context, route string, allowed bool)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	requestCount metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	generations  metric.Int64Counter
	fallbacks    metric.Int64Counter
	rateRejects  metric.Int64Counter
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	requestCount, err := meter.Int64Counter(
		"suggest.requests",
		metric.WithDescription("Total number of suggestion requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"suggest.errors",
		metric.WithDescription("Total number of suggestion request errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"suggest.duration_ms",
		metric.WithDescription("End-to-end suggestion latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"suggest.cache.hits",
		metric.WithDescription("Suggestion cache hits"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"suggest.cache.misses",
		metric.WithDescription("Suggestion cache misses"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	generations, err := meter.Int64Counter(
		"suggest.generations",
		metric.WithDescription("Suggestion lists produced, by source"),
		metric.WithUnit("{list}"),
	)
	if err != nil {
		return nil, err
	}

	fallbacks, err := meter.Int64Counter(
		"suggest.fallbacks",
		metric.WithDescription("Degraded-path decisions, by reason"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	rateRejects, err := meter.Int64Counter(
		"ratelimit.rejections",
		metric.WithDescription("Requests rejected by the rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		requestCount: requestCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
		generations:  generations,
		fallbacks:    fallbacks,
		rateRejects:  rateRejects,
	}, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, duration time.Duration, err error) {
	m.requestCount.Add(ctx, 1)
	if err != nil {
		m.errorCount.Add(ctx, 1)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()))
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, hit bool) {
	if hit {
		m.cacheHits.Add(ctx, 1)
	} else {
		m.cacheMisses.Add(ctx, 1)
	}
}

func (m *metricsImpl) RecordGeneration(ctx context.Context, source string) {
	m.generations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
	))
}

func (m *metricsImpl) RecordFallback(ctx context.Context, reason string) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

func (m *metricsImpl) RecordRateLimit(ctx context.Context, route string, allowed bool) {
	if allowed {
		return
	}
	m.rateRejects.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
	))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NewNoopMetrics creates a Metrics that records nothing.
func NewNoopMetrics() Metrics { return &noopMetrics{} }

func (m *noopMetrics) RecordRequest(ctx context.Context, duration time.Duration, err error) {}
func (m *noopMetrics) RecordCacheLookup(ctx context.Context, hit bool)                      {}
func (m *noopMetrics) RecordGeneration(ctx context.Context, source string)                  {}
func (m *noopMetrics) RecordFallback(ctx context.Context, reason string)                    {}
func (m *noopMetrics) RecordRateLimit(ctx context.Context, route string, allowed bool)      {}
