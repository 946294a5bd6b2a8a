package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/packops/health"
	"github.com/jonwraymond/packops/resilience"
	"github.com/jonwraymond/packops/trip"
)

// DefaultGeminiBaseURL is the production endpoint of the generative API.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiConfig configures the generative backend client.
type GeminiConfig struct {
	// APIKey authenticates against the API. Empty means the backend is
	// unavailable and callers fall back immediately.
	APIKey string

	// Model is the model name. Default: "gemini-pro"
	Model string

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	// MaxFailures opens the breaker after that many consecutive
	// failures. Default: 3
	MaxFailures int

	// Cooldown is how long the breaker stays open. Default: 60 seconds
	Cooldown time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Gemini calls the generative model over HTTP to produce suggestions.
// The client is breaker-guarded so a failing model API is cut off
// instead of slowing every cold-cache request to its timeout.
type Gemini struct {
	cfg     GeminiConfig
	client  *http.Client
	breaker *resilience.Breaker
	tracker *health.Tracker
}

// NewGemini creates the generative backend client.
func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "gemini-pro"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	g := &Gemini{
		cfg:     cfg,
		client:  cfg.HTTPClient,
		tracker: health.NewTracker(health.Available),
	}
	if cfg.APIKey == "" {
		g.tracker.Set(health.Unavailable)
	}
	g.breaker = resilience.NewBreaker(resilience.BreakerConfig{
		MaxFailures: cfg.MaxFailures,
		Cooldown:    cfg.Cooldown,
		OnStateChange: func(_, to resilience.State) {
			switch to {
			case resilience.StateClosed:
				g.tracker.Set(health.Available)
			case resilience.StateHalfOpen:
				g.tracker.Set(health.Degraded)
			default:
				g.tracker.Set(health.Unavailable)
			}
		},
	})
	return g
}

// request/response shapes for the generateContent endpoint.
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate calls the model and decodes its output into a confirmed
// suggestion list. Deadlines come from the caller's context.
func (g *Gemini) Generate(ctx context.Context, p trip.Params) (*SuggestionList, error) {
	if g.cfg.APIKey == "" {
		return nil, ErrUnavailable
	}

	var items []string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		text, err := g.call(ctx, buildPrompt(p))
		if err != nil {
			return err
		}
		items = parseItems(text)
		if len(items) == 0 {
			return ErrEmptyResult
		}
		return nil
	})
	if err == resilience.ErrCircuitOpen {
		return nil, ErrUnavailable
	}
	if err != nil {
		return nil, err
	}

	return &SuggestionList{
		Items:     items,
		Source:    SourceModel,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (g *Gemini) call(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.cfg.BaseURL, g.cfg.Model, g.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the log line; callers never
		// see backend error text.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("generate: model API status %d: %s", resp.StatusCode, snippet)
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("generate: decoding model response: %w", err)
	}
	if len(decoded.Candidates) == 0 {
		return "", ErrEmptyResult
	}

	var sb strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// Health reports the backend's capability: unavailable without an API
// key, otherwise whatever the breaker has observed.
func (g *Gemini) Health() health.State {
	if g.cfg.APIKey == "" {
		return g.tracker.State()
	}
	switch g.breaker.State() {
	case resilience.StateClosed:
		g.tracker.Set(health.Available)
	case resilience.StateHalfOpen:
		g.tracker.Set(health.Degraded)
	default:
		g.tracker.Set(health.Unavailable)
	}
	return g.tracker.State()
}

// buildPrompt renders the generation prompt from trip parameters.
func buildPrompt(p trip.Params) string {
	travelers := len(p.Travelers)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate a comprehensive packing list for the following trip:\n\n")
	fmt.Fprintf(&sb, "Destination: %s\n", p.Destination)
	fmt.Fprintf(&sb, "Duration: %d days\n", p.Days)
	fmt.Fprintf(&sb, "Number of travelers: %d\n", travelers)
	fmt.Fprintf(&sb, "Travel style: %s\n", p.Style)
	fmt.Fprintf(&sb, "Transportation: %s\n", p.Transport)

	if len(p.Activities) > 0 {
		fmt.Fprintf(&sb, "Activities: %s\n", strings.Join(p.Activities, ", "))
	}
	if p.Weather != nil && p.Weather.Summary != "" {
		fmt.Fprintf(&sb, "Weather: %s\n", p.Weather.Summary)
	}

	fmt.Fprintf(&sb, "\nIMPORTANT: For each item, suggest smart quantities based on:\n")
	fmt.Fprintf(&sb, "- Trip duration (%d days)\n", p.Days)
	fmt.Fprintf(&sb, "- Number of travelers (%d person(s))\n", travelers)
	fmt.Fprintf(&sb, "- Item shareability (e.g., toothpaste can be shared, but toothbrushes cannot)\n\n")
	fmt.Fprintf(&sb, "Format each line EXACTLY as: \"QUANTITY x ITEM_NAME\"\n")
	fmt.Fprintf(&sb, "Provide the complete packing list with smart quantities, one item per line.\n")

	return sb.String()
}

// Ensure Gemini implements Backend
var _ Backend = (*Gemini)(nil)
