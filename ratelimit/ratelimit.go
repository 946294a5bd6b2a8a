// Package ratelimit implements a fixed-window rate limiter keyed by
// (route, identity).
//
// Counters live in the shared cache backend so limits apply
// cluster-wide. When the cache is unavailable the limiter falls back to
// per-process in-memory counters: limits temporarily apply per process
// rather than across the cluster, an accepted trade-off rather than a
// failure.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/packops/cache"
)

// KeyPrefix namespaces rate-limit counters in the shared store.
const KeyPrefix = "ratelimit"

// Sentinel errors.
var (
	ErrNoRoute    = errors.New("ratelimit: route is required")
	ErrNoIdentity = errors.New("ratelimit: identity is required")
)

// Rule bounds calls per identity within a window.
type Rule struct {
	// Limit is the number of calls allowed per window.
	Limit int

	// Window is the fixed window duration.
	Window time.Duration
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed bool

	// Remaining is how many calls are left in the current window.
	Remaining int

	// RetryAfter is how long until the window resets. Positive whenever
	// the call is rejected.
	RetryAfter time.Duration
}

// Config configures the limiter.
type Config struct {
	// Default applies to routes without an override.
	// Default: 20 calls per hour
	Default Rule

	// Routes maps route names to their own rules.
	Routes map[string]Rule
}

// Limiter counts calls per (route, identity) over fixed windows.
type Limiter struct {
	shared cache.Cache
	local  *cache.Memory
	cfg    Config
}

// New creates a limiter. The shared cache may be nil, in which case all
// counting is process-local.
func New(shared cache.Cache, cfg Config) *Limiter {
	if cfg.Default.Limit <= 0 {
		cfg.Default.Limit = 20
	}
	if cfg.Default.Window <= 0 {
		cfg.Default.Window = time.Hour
	}

	return &Limiter{
		shared: shared,
		local:  cache.NewMemory(),
		cfg:    cfg,
	}
}

// Check records one call for (route, identity) and decides whether it is
// allowed. The increment is atomic in whichever store serves it.
func (l *Limiter) Check(ctx context.Context, route, identity string) (Decision, error) {
	if route == "" {
		return Decision{}, ErrNoRoute
	}
	if identity == "" {
		return Decision{}, ErrNoIdentity
	}

	rule := l.cfg.Default
	if r, ok := l.cfg.Routes[route]; ok && r.Limit > 0 && r.Window > 0 {
		rule = r
	}

	// Windows are clock-aligned so the reset time is computable without
	// asking the store for a TTL.
	now := time.Now()
	windowStart := now.Truncate(rule.Window)
	key := fmt.Sprintf("%s:%s:%s:%d", KeyPrefix, route, identity, windowStart.Unix())

	count, err := l.incr(ctx, key, rule.Window)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Allowed:   count <= int64(rule.Limit),
		Remaining: rule.Limit - int(count),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = windowStart.Add(rule.Window).Sub(now)
		if d.RetryAfter <= 0 {
			d.RetryAfter = time.Second
		}
	}
	return d, nil
}

// incr tries the shared store first and falls back to the process-local
// counter when the shared store cannot serve the increment.
func (l *Limiter) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if l.shared != nil {
		if n, err := l.shared.Incr(ctx, key, window); err == nil {
			return n, nil
		}
	}
	return l.local.Incr(ctx, key, window)
}
