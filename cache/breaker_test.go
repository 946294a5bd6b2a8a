package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/packops/health"
)

// flakyCache wraps Memory and fails every operation while failing is set.
type flakyCache struct {
	*Memory
	failing atomic.Bool
	calls   atomic.Int32
}

var errBackendDown = errors.New("backend down")

func newFlaky() *flakyCache {
	return &flakyCache{Memory: NewMemory()}
}

func (f *flakyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.calls.Add(1)
	if f.failing.Load() {
		return nil, false, errBackendDown
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.calls.Add(1)
	if f.failing.Load() {
		return errBackendDown
	}
	return f.Memory.Set(ctx, key, value, ttl)
}

func (f *flakyCache) Ping(ctx context.Context) error {
	f.calls.Add(1)
	if f.failing.Load() {
		return errBackendDown
	}
	return nil
}

func TestBreakerCache_PassThroughWhenHealthy(t *testing.T) {
	bc := NewBreakerCache(newFlaky(), BreakerCacheConfig{})
	ctx := context.Background()

	if err := bc.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() = %v, want nil", err)
	}
	v, ok, err := bc.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("Get() = %q, %v, %v; want v, true, nil", v, ok, err)
	}
	if got := bc.Health().Capability; got != health.Available {
		t.Errorf("Health() = %v, want available", got)
	}
}

func TestBreakerCache_OpensAndShortCircuits(t *testing.T) {
	backend := newFlaky()
	backend.failing.Store(true)

	bc := NewBreakerCache(backend, BreakerCacheConfig{MaxFailures: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, _ = bc.Get(ctx, "k")
	}
	if got := bc.Health().Capability; got != health.Unavailable {
		t.Fatalf("Health() after failures = %v, want unavailable", got)
	}

	// No real call while open: Get misses, Set absorbs.
	before := backend.calls.Load()
	if _, ok, err := bc.Get(ctx, "k"); ok || err != nil {
		t.Errorf("Get() while open = %v, %v; want false, nil", ok, err)
	}
	if err := bc.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Errorf("Set() while open = %v, want nil (silent no-op)", err)
	}
	if got := backend.calls.Load(); got != before {
		t.Errorf("backend calls while open = %d, want %d", got, before)
	}
}

func TestBreakerCache_RecoversThroughProbe(t *testing.T) {
	backend := newFlaky()
	backend.failing.Store(true)

	bc := NewBreakerCache(backend, BreakerCacheConfig{MaxFailures: 1, Cooldown: 20 * time.Millisecond})
	ctx := context.Background()

	_, _, _ = bc.Get(ctx, "k")
	if got := bc.Health().Capability; got != health.Unavailable {
		t.Fatalf("Health() = %v, want unavailable", got)
	}

	backend.failing.Store(false)
	time.Sleep(30 * time.Millisecond)

	if got := bc.Health().Capability; got != health.Degraded {
		t.Errorf("Health() during half-open = %v, want degraded", got)
	}

	// Probe succeeds, circuit closes.
	if err := bc.Ping(ctx); err != nil {
		t.Fatalf("probe Ping() = %v, want nil", err)
	}
	if got := bc.Health().Capability; got != health.Available {
		t.Errorf("Health() after probe = %v, want available", got)
	}
}

func TestBreakerCache_IncrSurfacesOpenCircuit(t *testing.T) {
	backend := newFlaky()
	backend.failing.Store(true)

	bc := NewBreakerCache(backend, BreakerCacheConfig{MaxFailures: 1, Cooldown: time.Minute})
	ctx := context.Background()

	_, _, _ = bc.Get(ctx, "k")

	if _, err := bc.Incr(ctx, "counter", time.Minute); err == nil {
		t.Error("Incr() while open = nil error, want error for fallback switch")
	}
}

func TestBreakerCache_SetNXWhileOpenSurfacesError(t *testing.T) {
	backend := newFlaky()
	backend.failing.Store(true)

	bc := NewBreakerCache(backend, BreakerCacheConfig{MaxFailures: 1, Cooldown: time.Minute})
	ctx := context.Background()

	_, _, _ = bc.Get(ctx, "k")

	ok, err := bc.SetNX(ctx, "lock", []byte("x"), time.Minute)
	if ok || err == nil {
		t.Errorf("SetNX() while open = %v, %v; want false with error", ok, err)
	}
}

func TestPolicy_EffectiveTTLClamp(t *testing.T) {
	p := Policy{DefaultTTL: 24 * time.Hour, MaxTTL: 24 * time.Hour}

	if got := p.EffectiveTTL(0); got != 24*time.Hour {
		t.Errorf("EffectiveTTL(0) = %v, want 24h", got)
	}
	if got := p.EffectiveTTL(48 * time.Hour); got != 24*time.Hour {
		t.Errorf("EffectiveTTL(48h) = %v, want clamped 24h", got)
	}
	if got := p.EffectiveTTL(time.Hour); got != time.Hour {
		t.Errorf("EffectiveTTL(1h) = %v, want 1h", got)
	}
}

func TestPolicy_Defaults(t *testing.T) {
	p := DefaultPolicy()
	if !p.ShouldCache() {
		t.Error("DefaultPolicy().ShouldCache() = false, want true")
	}
	if p.DefaultTTL != 24*time.Hour {
		t.Errorf("DefaultTTL = %v, want 24h", p.DefaultTTL)
	}
	if p.MockTTL != 0 {
		t.Errorf("MockTTL = %v, want 0", p.MockTTL)
	}
	if NoCachePolicy().ShouldCache() {
		t.Error("NoCachePolicy().ShouldCache() = true, want false")
	}
}
