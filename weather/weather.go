// Package weather fetches destination weather snapshots used as
// auxiliary generation context.
//
// The provider is optional: without an API key it reports unavailable
// and the orchestrator simply omits weather from the generation input.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jonwraymond/packops/cache"
	"github.com/jonwraymond/packops/health"
	"github.com/jonwraymond/packops/trip"
)

// DefaultBaseURL is the production openweathermap endpoint.
const DefaultBaseURL = "https://api.openweathermap.org"

// forecastHorizon is how close to departure the 5-day forecast applies;
// farther out, current conditions stand in as the estimate.
const forecastHorizon = 5 * 24 * time.Hour

// cacheTTL is how long a fetched snapshot stays valid.
const cacheTTL = 24 * time.Hour

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("weather: provider disabled")

// Config configures the weather provider.
type Config struct {
	// APIKey authenticates against the weather API. Empty disables the
	// provider.
	APIKey string

	// Units is "metric" or "imperial". Default: "metric"
	Units string

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Provider fetches weather snapshots, caching them through the shared
// cache adapter under its own key prefix.
type Provider struct {
	cfg     Config
	client  *http.Client
	cache   cache.Cache
	tracker *health.Tracker
}

// New creates a weather provider. The cache may be nil, in which case
// every snapshot is fetched fresh.
func New(cfg Config, c cache.Cache) *Provider {
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}

	p := &Provider{
		cfg:     cfg,
		client:  cfg.HTTPClient,
		cache:   c,
		tracker: health.NewTracker(health.Available),
	}
	if cfg.APIKey == "" {
		p.tracker.Set(health.Unavailable)
	}
	return p
}

// Health reports the provider's capability state.
func (p *Provider) Health() health.State {
	return p.tracker.State()
}

// Snapshot returns the expected conditions at the destination around
// the trip start date. Failures are returned to the caller, which per
// the degradation policy omits weather rather than failing the request.
func (p *Provider) Snapshot(ctx context.Context, destination, startDate string) (*trip.Weather, error) {
	if p.cfg.APIKey == "" {
		return nil, ErrDisabled
	}

	key := fmt.Sprintf("weather:%s:%s:%s", destination, startDate, p.cfg.Units)
	if p.cache != nil {
		if data, ok, _ := p.cache.Get(ctx, key); ok {
			var w trip.Weather
			if err := json.Unmarshal(data, &w); err == nil {
				return &w, nil
			}
		}
	}

	endpoint := "/data/2.5/weather"
	if start, err := time.Parse("2006-01-02", startDate); err == nil {
		if until := time.Until(start); until >= 0 && until <= forecastHorizon {
			endpoint = "/data/2.5/forecast"
		}
	}

	w, err := p.fetch(ctx, endpoint, destination)
	if err != nil {
		p.tracker.Set(health.Degraded)
		return nil, err
	}
	p.tracker.Set(health.Available)

	if p.cache != nil {
		if data, err := json.Marshal(w); err == nil {
			_ = p.cache.Set(ctx, key, data, cacheTTL)
		}
	}
	return w, nil
}

// conditions is the subset of the API response the snapshot needs. The
// forecast endpoint wraps the same shape in a list; taking the first
// entry approximates conditions at the start of the window.
type conditions struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

type forecastEnvelope struct {
	List []conditions `json:"list"`
}

func (p *Provider) fetch(ctx context.Context, endpoint, destination string) (*trip.Weather, error) {
	q := url.Values{}
	q.Set("q", destination)
	q.Set("appid", p.cfg.APIKey)
	q.Set("units", p.cfg.Units)
	q.Set("lang", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.cfg.BaseURL+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: API status %d", resp.StatusCode)
	}

	var cond conditions
	if endpoint == "/data/2.5/forecast" {
		var env forecastEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, fmt.Errorf("weather: decoding forecast: %w", err)
		}
		if len(env.List) == 0 {
			return nil, errors.New("weather: empty forecast")
		}
		cond = env.List[0]
	} else {
		if err := json.NewDecoder(resp.Body).Decode(&cond); err != nil {
			return nil, fmt.Errorf("weather: decoding conditions: %w", err)
		}
	}

	w := &trip.Weather{TempC: cond.Main.Temp}
	if len(cond.Weather) > 0 {
		w.Summary = cond.Weather[0].Description
	}
	return w, nil
}
