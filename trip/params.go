package trip

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// Known travel styles and transport methods. Inputs are matched
// case-insensitively.
var (
	Styles     = []string{"leisure", "business", "adventure", "family"}
	Transports = []string{"flight", "car", "train", "bus"}
)

// MaxDays bounds the trip duration accepted for suggestion generation.
const MaxDays = 365

// Weather is an optional snapshot of expected conditions at the
// destination. Temperature is in degrees Celsius.
type Weather struct {
	Summary string  `json:"summary"`
	TempC   float64 `json:"temp_c"`
}

// Params describes the inputs that determine a suggestion set. A Params
// value is created per request and never mutated; Normalized returns a
// canonical copy.
type Params struct {
	Destination string   `json:"destination"`
	StartDate   string   `json:"start_date"` // YYYY-MM-DD
	Days        int      `json:"days"`
	Style       string   `json:"style"`
	Transport   string   `json:"transport"`
	Activities  []string `json:"activities,omitempty"`
	Travelers   []string `json:"travelers"`
	Weather     *Weather `json:"weather,omitempty"`
}

// ValidationError describes a malformed request parameter. It is the only
// error a caller sees from the suggestion path.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("trip: invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the parameters and returns a *ValidationError for the
// first malformed field.
func (p Params) Validate() error {
	if strings.TrimSpace(p.Destination) == "" {
		return &ValidationError{Field: "destination", Reason: "must not be empty"}
	}
	if p.StartDate != "" {
		if _, err := time.Parse("2006-01-02", p.StartDate); err != nil {
			return &ValidationError{Field: "start_date", Reason: "must be YYYY-MM-DD"}
		}
	}
	if p.Days <= 0 || p.Days > MaxDays {
		return &ValidationError{Field: "days", Reason: fmt.Sprintf("must be between 1 and %d", MaxDays)}
	}
	if !containsFold(Styles, p.Style) {
		return &ValidationError{Field: "style", Reason: fmt.Sprintf("must be one of %v", Styles)}
	}
	if !containsFold(Transports, p.Transport) {
		return &ValidationError{Field: "transport", Reason: fmt.Sprintf("must be one of %v", Transports)}
	}
	if len(p.Travelers) == 0 {
		return &ValidationError{Field: "travelers", Reason: "at least one traveler is required"}
	}
	for _, name := range p.Travelers {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{Field: "travelers", Reason: "traveler names must not be empty"}
		}
	}
	return nil
}

// Normalized returns the canonical copy of p: strings trimmed, style and
// transport lowercased, composite fields sorted and deduplicated, and the
// weather temperature quantized to one decimal. Two structurally equal
// parameter sets normalize to identical values regardless of field order
// or representation.
func (p Params) Normalized() Params {
	out := Params{
		Destination: strings.TrimSpace(p.Destination),
		StartDate:   strings.TrimSpace(p.StartDate),
		Days:        p.Days,
		Style:       strings.ToLower(strings.TrimSpace(p.Style)),
		Transport:   strings.ToLower(strings.TrimSpace(p.Transport)),
		Activities:  normalizeList(p.Activities),
		Travelers:   normalizeList(p.Travelers),
	}
	if p.Weather != nil {
		out.Weather = &Weather{
			Summary: strings.TrimSpace(p.Weather.Summary),
			TempC:   quantize(p.Weather.TempC),
		}
	}
	return out
}

// quantize rounds to one decimal so near-identical continuous readings
// key identically.
func quantize(v float64) float64 {
	return math.Round(v*10) / 10
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func containsFold(set []string, v string) bool {
	v = strings.TrimSpace(v)
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
