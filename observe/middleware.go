package observe

import (
	"context"
	"time"
)

// OpFunc is the signature for instrumented pipeline operations. Results
// travel through closure capture; only the error is observed.
type OpFunc func(ctx context.Context) error

// Middleware wraps pipeline operations with observability (tracing,
// metrics, logging).
//
// Contract:
//   - Concurrency: Observe is safe for concurrent use.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Observe runs fn inside a span, records request metrics, and logs the
// outcome with operation context.
func (m *Middleware) Observe(ctx context.Context, meta OpMeta, fn OpFunc) error {
	if meta.Name == "" {
		return ErrMissingOpName
	}

	ctx, span := m.tracer.StartSpan(ctx, meta)

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	// End span (records error status if err != nil)
	m.tracer.EndSpan(span, err)

	m.metrics.RecordRequest(ctx, duration, err)

	opLogger := m.logger.WithOp(meta)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		opLogger.Error(ctx, "operation failed", fields...)
	} else {
		opLogger.Info(ctx, "operation completed", fields...)
	}

	return err
}

// MiddlewareFromObserver creates a Middleware from an Observer.
// This is a convenience function for common use cases.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	tracer := NewTracer(obs.Tracer())

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(tracer, metrics, obs.Logger()), nil
}
