package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jonwraymond/packops/cache"
	"github.com/jonwraymond/packops/fingerprint"
	"github.com/jonwraymond/packops/flight"
	"github.com/jonwraymond/packops/generate"
	"github.com/jonwraymond/packops/health"
	"github.com/jonwraymond/packops/observe"
	"github.com/jonwraymond/packops/ratelimit"
	"github.com/jonwraymond/packops/resilience"
	"github.com/jonwraymond/packops/store"
	"github.com/jonwraymond/packops/trip"
	"github.com/jonwraymond/packops/weather"
)

// Options configures the Service. Every dependency except the substitute
// generator is optional; a zero Options yields a service that validates,
// generates substitute suggestions, and nothing else.
type Options struct {
	// Backend is the generative backend. Nil means every request is
	// served by the deterministic substitute.
	Backend generate.Backend

	// Cache stores suggestion lists and coordination leases. Callers
	// normally pass a BreakerCache so outages degrade instead of erroring.
	Cache cache.Cache

	// Weather enriches trip parameters before fingerprinting.
	Weather *weather.Provider

	// Store persists trips and the suggestion audit trail.
	Store *store.Store

	// Limiter enforces per-identity request budgets.
	Limiter *ratelimit.Limiter

	// Policy governs result TTLs. The zero value means
	// cache.DefaultPolicy(); pass a nil Cache to disable caching.
	Policy cache.Policy

	// Flight tunes cross-process generation coordination.
	Flight flight.Config

	// GenerateTimeout bounds one backend generation attempt.
	// Default: 10s
	GenerateTimeout time.Duration

	// Logger, Metrics, and Tracer default to no-ops.
	Logger  observe.Logger
	Metrics observe.Metrics
	Tracer  observe.Tracer
}

// Service orchestrates suggestion requests.
type Service struct {
	backend generate.Backend
	mock    *generate.Mock
	cache   cache.Cache
	weather *weather.Provider
	store   *store.Store
	limiter *ratelimit.Limiter
	flight  *flight.Coordinator
	policy  cache.Policy
	timeout time.Duration
	logger  observe.Logger
	metrics observe.Metrics
	mw      *observe.Middleware
}

// New creates a Service.
func New(opts Options) *Service {
	// Apply defaults
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 10 * time.Second
	}
	if opts.Policy == (cache.Policy{}) {
		opts.Policy = cache.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = observe.NewNoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.NewNoopMetrics()
	}
	if opts.Tracer == nil {
		opts.Tracer = observe.NewNoopTracer()
	}

	return &Service{
		backend: opts.Backend,
		mock:    generate.NewMock(),
		cache:   opts.Cache,
		weather: opts.Weather,
		store:   opts.Store,
		limiter: opts.Limiter,
		flight:  flight.New(opts.Cache, opts.Flight),
		policy:  opts.Policy,
		timeout: opts.GenerateTimeout,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		mw:      observe.NewMiddleware(opts.Tracer, opts.Metrics, opts.Logger),
	}
}

// GetSuggestions returns a suggestion list for the given trip. The only
// error callers see on the generation path is *trip.ValidationError;
// every dependency failure degrades to a substitute result instead.
func (s *Service) GetSuggestions(ctx context.Context, p trip.Params) (*generate.SuggestionList, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s.attachWeather(ctx, &p)
	p = p.Normalized()

	key := fingerprint.Derive(p)
	meta := observe.OpMeta{
		Name:        "suggestions.get",
		Fingerprint: strings.TrimPrefix(key, fingerprint.Namespace+":"),
	}

	var list *generate.SuggestionList
	err := s.mw.Observe(ctx, meta, func(ctx context.Context) error {
		var opErr error
		list, opErr = s.cachedOrGenerate(ctx, key, p)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) cachedOrGenerate(ctx context.Context, key string, p trip.Params) (*generate.SuggestionList, error) {
	start := time.Now()

	if cached, ok := s.lookup(ctx, key); ok {
		s.metrics.RecordCacheLookup(ctx, true)
		s.audit(ctx, key, cached, true, time.Since(start))
		return cached, nil
	}
	if s.cache != nil {
		s.metrics.RecordCacheLookup(ctx, false)
	}

	data, shared, err := s.flight.Do(ctx, key,
		func(ctx context.Context) ([]byte, error) {
			return s.generate(ctx, key, p)
		},
		func(ctx context.Context) ([]byte, bool) {
			return s.rawLookup(ctx, key)
		},
	)
	if err != nil {
		if errors.Is(err, flight.ErrHeldElsewhere) {
			// Another process holds the generation lease and never
			// published. Serve the substitute rather than blocking.
			s.metrics.RecordFallback(ctx, "lease_lost")
			list := s.substitute(ctx, p)
			s.audit(ctx, key, list, false, time.Since(start))
			return list, nil
		}
		return nil, err
	}

	var list generate.SuggestionList
	if err := json.Unmarshal(data, &list); err != nil {
		s.logger.Error(ctx, "undecodable suggestion payload",
			observe.Field{Key: "error", Value: err.Error()})
		fallback := s.substitute(ctx, p)
		s.audit(ctx, key, fallback, false, time.Since(start))
		return fallback, nil
	}
	if shared {
		s.logger.Debug(ctx, "joined in-flight generation")
	}
	s.audit(ctx, key, &list, false, time.Since(start))
	return &list, nil
}

// generate runs one backend attempt and publishes the result. It runs
// under the flight lease, so there is at most one per fingerprint.
func (s *Service) generate(ctx context.Context, key string, p trip.Params) ([]byte, error) {
	// The result is cached for every waiter, so a disconnecting caller
	// must not abort it.
	ctx = context.WithoutCancel(ctx)

	switch s.backendAction() {
	case health.ActionProceed:
		var result *generate.SuggestionList
		err := resilience.ExecuteWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
			var genErr error
			result, genErr = s.backend.Generate(ctx, p)
			return genErr
		})
		if err == nil {
			data, mErr := json.Marshal(result)
			if mErr == nil {
				s.metrics.RecordGeneration(ctx, result.Source)
				s.cacheSet(ctx, key, data, s.policy.EffectiveTTL(0))
				return data, nil
			}
			err = mErr
		}
		s.metrics.RecordFallback(ctx, fallbackReason(err))
		s.logger.Warn(ctx, "generation failed, serving substitute",
			observe.Field{Key: "reason", Value: err.Error()})
	case health.ActionFallback:
		s.metrics.RecordFallback(ctx, "backend_unavailable")
		s.logger.Debug(ctx, "backend unavailable, serving substitute")
	}

	list := s.substitute(ctx, p)
	data, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	if s.policy.MockTTL > 0 {
		s.cacheSet(ctx, key, data, s.policy.EffectiveTTL(s.policy.MockTTL))
	}
	return data, nil
}

// backendAction consults the degradation policy for the generation role.
// A nil backend is simply absent, not a degradation.
func (s *Service) backendAction() health.Action {
	if s.backend == nil {
		return health.ActionOmit
	}
	return health.ActionFor(health.RoleGeneration, s.backend.Health().Capability)
}

func (s *Service) substitute(ctx context.Context, p trip.Params) *generate.SuggestionList {
	list, _ := s.mock.Generate(ctx, p)
	s.metrics.RecordGeneration(ctx, generate.SourceMock)
	return list
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, resilience.ErrTimeout):
		return "generation_timeout"
	case errors.Is(err, generate.ErrUnavailable), errors.Is(err, resilience.ErrCircuitOpen):
		return "backend_unavailable"
	default:
		return "backend_error"
	}
}

// attachWeather enriches the trip with a weather snapshot. Failure means
// the trip simply carries no weather; it is never an error.
func (s *Service) attachWeather(ctx context.Context, p *trip.Params) {
	if s.weather == nil || p.Weather != nil {
		return
	}
	if health.ActionFor(health.RoleAuxiliary, s.weather.Health().Capability) == health.ActionOmit {
		return
	}
	w, err := s.weather.Snapshot(ctx, p.Destination, p.StartDate)
	if err != nil {
		s.metrics.RecordFallback(ctx, "weather_unavailable")
		s.logger.Debug(ctx, "weather omitted",
			observe.Field{Key: "destination", Value: p.Destination},
			observe.Field{Key: "error", Value: err.Error()})
		return
	}
	p.Weather = w
}

// lookup decodes a cached suggestion list. Any cache failure is a miss.
func (s *Service) lookup(ctx context.Context, key string) (*generate.SuggestionList, bool) {
	data, ok := s.rawLookup(ctx, key)
	if !ok {
		return nil, false
	}
	var list generate.SuggestionList
	if err := json.Unmarshal(data, &list); err != nil {
		s.logger.Warn(ctx, "dropping undecodable cache entry",
			observe.Field{Key: "error", Value: err.Error()})
		_ = s.cache.Delete(ctx, key)
		return nil, false
	}
	return &list, true
}

// cacheUsable consults the degradation policy for the cache role. An
// open breaker means bypass: no call is attempted at all.
func (s *Service) cacheUsable(ctx context.Context) bool {
	if s.cache == nil || !s.policy.ShouldCache() {
		return false
	}
	if c, ok := s.cache.(health.Checker); ok {
		return health.ActionFor(health.RoleCache, c.Check(ctx).Capability) != health.ActionBypass
	}
	return true
}

func (s *Service) rawLookup(ctx context.Context, key string) ([]byte, bool) {
	if !s.cacheUsable(ctx) {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.metrics.RecordFallback(ctx, "cache_unavailable")
		return nil, false
	}
	return data, ok
}

func (s *Service) cacheSet(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if !s.cacheUsable(ctx) || ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.logger.Warn(ctx, "suggestion cache write failed",
			observe.Field{Key: "error", Value: err.Error()})
	}
}

// audit appends the outcome to the suggestion log. Best effort: the log
// is advisory, so failures are reported but never propagated.
func (s *Service) audit(ctx context.Context, key string, list *generate.SuggestionList, cacheHit bool, elapsed time.Duration) {
	if s.store == nil {
		return
	}
	rec := store.SuggestionRecord{
		Fingerprint: strings.TrimPrefix(key, fingerprint.Namespace+":"),
		Source:      list.Source,
		ItemCount:   len(list.Items),
		CacheHit:    cacheHit,
		Duration:    elapsed,
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.store.AppendSuggestion(writeCtx, rec); err != nil {
		s.logger.Error(ctx, "suggestion audit append failed",
			observe.Field{Key: "error", Value: err.Error()})
	}
}

// CheckRateLimit records one call for (route, identity) and decides
// whether to admit it. Without a limiter everything is admitted.
func (s *Service) CheckRateLimit(ctx context.Context, route, identity string) (ratelimit.Decision, error) {
	if s.limiter == nil {
		return ratelimit.Decision{Allowed: true}, nil
	}
	d, err := s.limiter.Check(ctx, route, identity)
	if err != nil {
		return ratelimit.Decision{}, err
	}
	s.metrics.RecordRateLimit(ctx, route, d.Allowed)
	return d, nil
}

// Ready reports whether required dependencies are reachable. Optional
// dependencies never affect readiness.
func (s *Service) Ready(ctx context.Context) error {
	if s.store != nil {
		return s.store.Ping(ctx)
	}
	return nil
}

// Health reports the capability state of each degradable dependency.
func (s *Service) Health() map[string]health.State {
	states := make(map[string]health.State)
	if c, ok := s.cache.(health.Checker); ok {
		states["cache"] = c.Check(context.Background())
	}
	if s.backend != nil {
		states["generation"] = s.backend.Health()
	}
	if s.weather != nil {
		states["weather"] = s.weather.Health()
	}
	return states
}
