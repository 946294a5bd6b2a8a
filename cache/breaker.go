package cache

import (
	"context"
	"time"

	"github.com/jonwraymond/packops/health"
	"github.com/jonwraymond/packops/resilience"
)

// BreakerCacheConfig configures the circuit-breaking cache adapter.
type BreakerCacheConfig struct {
	// MaxFailures is the consecutive failure count that opens the
	// circuit. Default: 5
	MaxFailures int

	// Cooldown is how long the circuit stays open. Default: 15 seconds
	Cooldown time.Duration

	// OpTimeout bounds each backend call. Default: 800ms
	OpTimeout time.Duration

	// OnStateChange is forwarded to the underlying breaker.
	OnStateChange func(from, to resilience.State)
}

// BreakerCache wraps a Cache with a circuit breaker and per-operation
// timeouts, and owns the backend's capability state.
//
// While the circuit is open no backend call is attempted: Get reports a
// miss, Set and Delete are silent no-ops, and SetNX and Incr return an
// error so callers can switch to their local fallbacks. Capability
// transitions happen only here; nothing outside the adapter sets them.
type BreakerCache struct {
	backend Cache
	breaker *resilience.Breaker
	timeout time.Duration
	tracker *health.Tracker
}

// NewBreakerCache creates the circuit-breaking adapter around backend.
func NewBreakerCache(backend Cache, cfg BreakerCacheConfig) *BreakerCache {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 800 * time.Millisecond
	}

	bc := &BreakerCache{
		backend: backend,
		timeout: cfg.OpTimeout,
		tracker: health.NewTracker(health.Available),
	}
	bc.breaker = resilience.NewBreaker(resilience.BreakerConfig{
		MaxFailures: cfg.MaxFailures,
		Cooldown:    cfg.Cooldown,
		OnStateChange: func(from, to resilience.State) {
			bc.tracker.Set(capabilityFor(to))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(from, to)
			}
		},
	})
	return bc
}

func capabilityFor(s resilience.State) health.Capability {
	switch s {
	case resilience.StateClosed:
		return health.Available
	case resilience.StateHalfOpen:
		return health.Degraded
	default:
		return health.Unavailable
	}
}

// Health returns the backend's capability state snapshot.
func (c *BreakerCache) Health() health.State {
	// The breaker moves open to half-open on a clock; refresh before
	// reporting so the snapshot reflects an elapsed cooldown.
	c.tracker.Set(capabilityFor(c.breaker.State()))
	return c.tracker.State()
}

// Name identifies the dependency for health reporting.
func (c *BreakerCache) Name() string { return "cache" }

// Check implements health.Checker.
func (c *BreakerCache) Check(context.Context) health.State { return c.Health() }

// Get retrieves a cached value. Backend failures and open-circuit
// short-circuits both surface as a plain miss.
func (c *BreakerCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var found bool

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.ExecuteWithTimeout(ctx, c.timeout, func(ctx context.Context) error {
			v, ok, err := c.backend.Get(ctx, key)
			if err != nil {
				return err
			}
			value, found = v, ok
			return nil
		})
	})
	if err != nil {
		return nil, false, nil
	}
	return value, found, nil
}

// Set stores a value. While the circuit is open it is a silent no-op.
func (c *BreakerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.ExecuteWithTimeout(ctx, c.timeout, func(ctx context.Context) error {
			return c.backend.Set(ctx, key, value, ttl)
		})
	})
	if err == resilience.ErrCircuitOpen {
		return nil
	}
	return err
}

// SetNX attempts the conditional store. Errors (including an open
// circuit) are surfaced: the single-flight coordinator needs to tell a
// lease held elsewhere apart from a cache that is down, because the
// latter degrades to process-local exclusivity.
func (c *BreakerCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var acquired bool
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.ExecuteWithTimeout(ctx, c.timeout, func(ctx context.Context) error {
			ok, err := c.backend.SetNX(ctx, key, value, ttl)
			acquired = ok
			return err
		})
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// Delete removes a cached value. While the circuit is open it is a
// silent no-op.
func (c *BreakerCache) Delete(ctx context.Context, key string) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.ExecuteWithTimeout(ctx, c.timeout, func(ctx context.Context) error {
			return c.backend.Delete(ctx, key)
		})
	})
	if err == resilience.ErrCircuitOpen {
		return nil
	}
	return err
}

// Incr increments the counter at key. Unlike the other operations the
// error is surfaced: the rate limiter needs to know the shared store is
// gone so it can fall back to process-local counting.
func (c *BreakerCache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var n int64
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.ExecuteWithTimeout(ctx, c.timeout, func(ctx context.Context) error {
			v, err := c.backend.Incr(ctx, key, ttl)
			n = v
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Ping probes the backend through the breaker.
func (c *BreakerCache) Ping(ctx context.Context) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.ExecuteWithTimeout(ctx, c.timeout, func(ctx context.Context) error {
			return c.backend.Ping(ctx)
		})
	})
}

// Close releases the underlying backend.
func (c *BreakerCache) Close() error {
	return c.backend.Close()
}

// Ensure BreakerCache implements Cache and health.Checker
var (
	_ Cache          = (*BreakerCache)(nil)
	_ health.Checker = (*BreakerCache)(nil)
)
