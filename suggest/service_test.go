package suggest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/packops/cache"
	"github.com/jonwraymond/packops/fingerprint"
	"github.com/jonwraymond/packops/generate"
	"github.com/jonwraymond/packops/health"
	"github.com/jonwraymond/packops/ratelimit"
	"github.com/jonwraymond/packops/store"
	"github.com/jonwraymond/packops/trip"
	"github.com/jonwraymond/packops/weather"
)

// fakeBackend is a scriptable generation backend.
type fakeBackend struct {
	calls      int32
	delay      time.Duration
	err        error
	items      []string
	capability health.Capability
}

func (b *fakeBackend) Generate(ctx context.Context, p trip.Params) (*generate.SuggestionList, error) {
	atomic.AddInt32(&b.calls, 1)
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	return &generate.SuggestionList{
		Items:     b.items,
		Source:    generate.SourceModel,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (b *fakeBackend) Health() health.State {
	return health.State{Capability: b.capability}
}

func (b *fakeBackend) count() int { return int(atomic.LoadInt32(&b.calls)) }

// failingCache errors on every operation, like an unreachable redis.
type failingCache struct {
	gets int32
	sets int32
}

var errCacheDown = errors.New("cache down")

func (c *failingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	atomic.AddInt32(&c.gets, 1)
	return nil, false, errCacheDown
}

func (c *failingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	atomic.AddInt32(&c.sets, 1)
	return errCacheDown
}

func (c *failingCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&c.sets, 1)
	return false, errCacheDown
}

func (c *failingCache) Delete(ctx context.Context, key string) error { return errCacheDown }

func (c *failingCache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errCacheDown
}

func (c *failingCache) Ping(ctx context.Context) error { return errCacheDown }
func (c *failingCache) Close() error                   { return nil }

func testParams() trip.Params {
	return trip.Params{
		Destination: "Paris",
		StartDate:   "2026-09-10",
		Days:        5,
		Style:       "leisure",
		Transport:   "flight",
		Activities:  []string{"museums", "hiking"},
		Travelers:   []string{"adult"},
	}
}

func TestGetSuggestions_ValidationError(t *testing.T) {
	svc := New(Options{})

	_, err := svc.GetSuggestions(context.Background(), trip.Params{Destination: "Paris"})
	var vErr *trip.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want *trip.ValidationError", err)
	}
}

func TestGetSuggestions_NoBackendServesMock(t *testing.T) {
	svc := New(Options{})

	list, err := svc.GetSuggestions(context.Background(), testParams())
	if err != nil {
		t.Fatalf("GetSuggestions: %v", err)
	}
	if list.Source != generate.SourceMock {
		t.Errorf("source = %q, want mock", list.Source)
	}
	if len(list.Items) == 0 {
		t.Error("expected substitute items")
	}
}

func TestGetSuggestions_CachedResultSkipsBackend(t *testing.T) {
	backend := &fakeBackend{items: []string{"2 x t-shirt", "1 x raincoat"}}
	svc := New(Options{Backend: backend, Cache: cache.NewMemory()})

	first, err := svc.GetSuggestions(context.Background(), testParams())
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.Source != generate.SourceModel {
		t.Fatalf("source = %q, want model", first.Source)
	}

	second, err := svc.GetSuggestions(context.Background(), testParams())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !reflect.DeepEqual(first.Items, second.Items) {
		t.Errorf("cached items differ: %v vs %v", first.Items, second.Items)
	}
	if backend.count() != 1 {
		t.Errorf("backend calls = %d, want 1", backend.count())
	}
}

func TestGetSuggestions_EquivalentParamsShareCacheEntry(t *testing.T) {
	backend := &fakeBackend{items: []string{"2 x t-shirt"}}
	svc := New(Options{Backend: backend, Cache: cache.NewMemory()})

	if _, err := svc.GetSuggestions(context.Background(), testParams()); err != nil {
		t.Fatalf("first call: %v", err)
	}

	// Same trip, different representation.
	p := testParams()
	p.Activities = []string{"Hiking", "MUSEUMS"}
	p.Style = "LEISURE"
	if _, err := svc.GetSuggestions(context.Background(), p); err != nil {
		t.Fatalf("second call: %v", err)
	}

	if backend.count() != 1 {
		t.Errorf("backend calls = %d, want 1", backend.count())
	}
}

func TestGetSuggestions_ConcurrentCallersOneGeneration(t *testing.T) {
	backend := &fakeBackend{items: []string{"5 x socks"}, delay: 50 * time.Millisecond}
	svc := New(Options{Backend: backend, Cache: cache.NewMemory()})

	const callers = 20
	var wg sync.WaitGroup
	results := make([]*generate.SuggestionList, callers)
	errs := make([]error, callers)

	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetSuggestions(context.Background(), testParams())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if !reflect.DeepEqual(results[i].Items, results[0].Items) {
			t.Fatalf("caller %d got different items", i)
		}
	}
	if backend.count() != 1 {
		t.Errorf("backend calls = %d, want 1", backend.count())
	}
}

func TestGetSuggestions_TimeoutServesExactMockItems(t *testing.T) {
	backend := &fakeBackend{items: []string{"never returned"}, delay: time.Second}
	svc := New(Options{
		Backend:         backend,
		Cache:           cache.NewMemory(),
		GenerateTimeout: 20 * time.Millisecond,
	})

	p := testParams()
	list, err := svc.GetSuggestions(context.Background(), p)
	if err != nil {
		t.Fatalf("GetSuggestions: %v", err)
	}
	if list.Source != generate.SourceMock {
		t.Fatalf("source = %q, want mock", list.Source)
	}

	want := generate.NewMock().Items(p.Normalized())
	if !reflect.DeepEqual(list.Items, want) {
		t.Errorf("items = %v, want %v", list.Items, want)
	}
}

func TestGetSuggestions_MockNotCachedByDefault(t *testing.T) {
	backend := &fakeBackend{err: generate.ErrUnavailable}
	svc := New(Options{Backend: backend, Cache: cache.NewMemory()})

	for i := 0; i < 2; i++ {
		list, err := svc.GetSuggestions(context.Background(), testParams())
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if list.Source != generate.SourceMock {
			t.Fatalf("call %d source = %q, want mock", i, list.Source)
		}
	}
	// No cached substitute, so the backend is retried each time.
	if backend.count() != 2 {
		t.Errorf("backend calls = %d, want 2", backend.count())
	}
}

func TestGetSuggestions_MockCachedWithMockTTL(t *testing.T) {
	backend := &fakeBackend{err: generate.ErrUnavailable}
	svc := New(Options{
		Backend: backend,
		Cache:   cache.NewMemory(),
		Policy: cache.Policy{
			DefaultTTL: 24 * time.Hour,
			MockTTL:    time.Minute,
			MaxTTL:     24 * time.Hour,
		},
	})

	if _, err := svc.GetSuggestions(context.Background(), testParams()); err != nil {
		t.Fatalf("first call: %v", err)
	}
	list, err := svc.GetSuggestions(context.Background(), testParams())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if backend.count() != 1 {
		t.Errorf("backend calls = %d, want 1", backend.count())
	}
	// A cached substitute must still identify itself as one.
	if list.Source != generate.SourceMock {
		t.Errorf("source = %q, want mock", list.Source)
	}
}

func TestGetSuggestions_OpenCircuitCacheDegradesSilently(t *testing.T) {
	inner := &failingCache{}
	guarded := cache.NewBreakerCache(inner, cache.BreakerCacheConfig{
		MaxFailures: 1,
		Cooldown:    time.Minute,
	})
	backend := &fakeBackend{items: []string{"3 x shirt"}}
	svc := New(Options{Backend: backend, Cache: guarded})

	for i := 0; i < 3; i++ {
		list, err := svc.GetSuggestions(context.Background(), testParams())
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if list.Source != generate.SourceModel {
			t.Errorf("call %d source = %q, want model", i, list.Source)
		}
	}

	// The first failure opens the circuit; after that nothing reaches
	// the backend store.
	if got := atomic.LoadInt32(&inner.sets); got != 0 {
		t.Errorf("cache writes reached failing backend: %d", got)
	}
	if guarded.Health().Capability == health.Available {
		t.Error("expected degraded cache capability")
	}
}

func TestGetSuggestions_UnavailableBackendNotCalled(t *testing.T) {
	backend := &fakeBackend{items: []string{"1 x hat"}, capability: health.Unavailable}
	svc := New(Options{Backend: backend})

	list, err := svc.GetSuggestions(context.Background(), testParams())
	if err != nil {
		t.Fatalf("GetSuggestions: %v", err)
	}
	if list.Source != generate.SourceMock {
		t.Errorf("source = %q, want mock", list.Source)
	}
	if backend.count() != 0 {
		t.Errorf("backend calls = %d, want 0", backend.count())
	}
}

func TestGetSuggestions_WeatherFailureOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	provider := weather.New(weather.Config{APIKey: "k", BaseURL: srv.URL}, nil)
	backend := &fakeBackend{items: []string{"1 x umbrella"}}
	svc := New(Options{Backend: backend, Weather: provider})

	list, err := svc.GetSuggestions(context.Background(), testParams())
	if err != nil {
		t.Fatalf("GetSuggestions: %v", err)
	}
	if list.Source != generate.SourceModel {
		t.Errorf("source = %q, want model", list.Source)
	}
}

func TestGetSuggestions_AuditTrail(t *testing.T) {
	st, err := store.Open(store.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	backend := &fakeBackend{items: []string{"2 x t-shirt"}}
	svc := New(Options{Backend: backend, Cache: cache.NewMemory(), Store: st})

	p := testParams()
	if _, err := svc.GetSuggestions(context.Background(), p); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := svc.GetSuggestions(context.Background(), p); err != nil {
		t.Fatalf("second call: %v", err)
	}

	fp := fingerprint.Derive(p.Normalized())
	fp = fp[len(fingerprint.Namespace)+1:]
	records, err := st.RecentSuggestions(context.Background(), fp, 10)
	if err != nil {
		t.Fatalf("RecentSuggestions: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if !records[0].CacheHit || records[1].CacheHit {
		t.Errorf("expected newest record to be the cache hit: %+v", records)
	}
	if records[1].Source != generate.SourceModel {
		t.Errorf("source = %q, want model", records[1].Source)
	}
}

func TestCheckRateLimit(t *testing.T) {
	limiter := ratelimit.New(cache.NewMemory(), ratelimit.Config{
		Default: ratelimit.Rule{Limit: 2, Window: time.Hour},
	})
	svc := New(Options{Limiter: limiter})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		d, err := svc.CheckRateLimit(ctx, "/api/suggestions", "user-1")
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("check %d rejected early", i)
		}
	}

	d, err := svc.CheckRateLimit(ctx, "/api/suggestions", "user-1")
	if err != nil {
		t.Fatalf("third check: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected third call to be rejected")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", d.RetryAfter)
	}

	// A different identity has its own budget.
	if d, _ := svc.CheckRateLimit(ctx, "/api/suggestions", "user-2"); !d.Allowed {
		t.Error("expected other identity to be admitted")
	}
}

func TestCheckRateLimit_NoLimiterAdmits(t *testing.T) {
	svc := New(Options{})
	d, err := svc.CheckRateLimit(context.Background(), "/api/suggestions", "user-1")
	if err != nil {
		t.Fatalf("CheckRateLimit: %v", err)
	}
	if !d.Allowed {
		t.Error("expected admission without a limiter")
	}
}

func TestReady(t *testing.T) {
	svc := New(Options{})
	if err := svc.Ready(context.Background()); err != nil {
		t.Errorf("Ready without store: %v", err)
	}

	st, err := store.Open(store.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	svc = New(Options{Store: st})
	if err := svc.Ready(context.Background()); err != nil {
		t.Errorf("Ready with store: %v", err)
	}
}

func TestHealth_ReportsDependencies(t *testing.T) {
	backend := &fakeBackend{}
	svc := New(Options{
		Backend: backend,
		Cache:   cache.NewBreakerCache(cache.NewMemory(), cache.BreakerCacheConfig{}),
	})

	states := svc.Health()
	if states["generation"].Capability != health.Available {
		t.Errorf("generation = %v, want Available", states["generation"].Capability)
	}
	if states["cache"].Capability != health.Available {
		t.Errorf("cache = %v, want Available", states["cache"].Capability)
	}
}
