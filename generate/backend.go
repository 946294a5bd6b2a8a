package generate

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jonwraymond/packops/health"
	"github.com/jonwraymond/packops/trip"
)

// Suggestion sources.
const (
	// SourceModel marks a result confirmed by the generative backend.
	SourceModel = "model"
	// SourceMock marks a deterministic substitute result.
	SourceMock = "mock"
)

// Sentinel errors for generation.
var (
	// ErrUnavailable is returned when the backend cannot be called at all.
	ErrUnavailable = errors.New("generate: backend unavailable")

	// ErrEmptyResult is returned when the backend responded but nothing
	// in its output matched the expected item format.
	ErrEmptyResult = errors.New("generate: backend returned no usable items")
)

// SuggestionList is a generated set of packing suggestions. Items use
// the "QUANTITY x ITEM" line format.
type SuggestionList struct {
	Items     []string  `json:"items"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Confirmed reports whether the list came from the real backend rather
// than the substitute.
func (s *SuggestionList) Confirmed() bool {
	return s.Source == SourceModel
}

// Backend produces packing suggestions for validated trip parameters.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Generate must honor cancellation/deadlines.
// - Errors: any error means the caller should fall back; callers never
//   surface backend errors to users.
type Backend interface {
	// Generate produces suggestions for the given parameters.
	Generate(ctx context.Context, p trip.Params) (*SuggestionList, error)

	// Health reports the backend's capability state.
	Health() health.State
}

var (
	// itemLine matches the required "QUANTITY x ITEM" format.
	itemLine = regexp.MustCompile(`(?i)^\d+\s*x\s*.+`)

	// listMarker matches leading bullets or "1." style numbering,
	// which models add despite instructions not to.
	listMarker = regexp.MustCompile(`^(?:[•\-*]+|\d+\.)\s*`)
)

// parseItems filters raw model output down to lines in item format.
func parseItems(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		cleaned := listMarker.ReplaceAllString(strings.TrimSpace(line), "")
		if itemLine.MatchString(cleaned) {
			items = append(items, cleaned)
		}
	}
	return items
}
