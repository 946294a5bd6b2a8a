package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/packops/health"
	"github.com/jonwraymond/packops/trip"
)

// maxMockItems caps the substitute list length.
const maxMockItems = 15

// Mock is the deterministic substitute backend. It is a total function
// of the normalized parameters: no I/O, no failure modes, identical
// output for identical input.
type Mock struct{}

// NewMock creates the mock backend.
func NewMock() *Mock {
	return &Mock{}
}

// Generate produces the substitute suggestion list.
func (m *Mock) Generate(_ context.Context, p trip.Params) (*SuggestionList, error) {
	return &SuggestionList{
		Items:     m.Items(p),
		Source:    SourceMock,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Items returns the deterministic item lines for p. Quantities follow
// the traveler count and trip duration; style and transport add their
// own staples.
func (m *Mock) Items(p trip.Params) []string {
	p = p.Normalized()
	travelers := len(p.Travelers)
	days := p.Days

	items := []string{
		fmt.Sprintf("%d x Passport and travel documents", travelers),
		fmt.Sprintf("%d x Phone charger", travelers),
		fmt.Sprintf("%d x Comfortable walking shoes", travelers),
		fmt.Sprintf("%d x T-shirts", days),
		fmt.Sprintf("%d x Pairs of socks", days),
		fmt.Sprintf("%d x Underwear", days+2),
		fmt.Sprintf("%d x Toothbrush", travelers),
		"1 x Toothpaste",
		fmt.Sprintf("%d x Deodorant", travelers),
		"1 x Sunscreen",
		fmt.Sprintf("%d x Reusable water bottle", travelers),
	}

	switch p.Style {
	case "business":
		items = append(items,
			fmt.Sprintf("%d x Business shirts", days),
			fmt.Sprintf("%d x Laptop and accessories", travelers),
			"1 x Business cards holder",
		)
	case "adventure":
		items = append(items,
			fmt.Sprintf("%d x Hiking boots", travelers),
			fmt.Sprintf("%d x Backpack", travelers),
			"1 x First aid kit",
		)
	}

	if p.Transport == "flight" {
		items = append(items,
			fmt.Sprintf("%d x Luggage tags", travelers),
			fmt.Sprintf("%d x Travel pillow", travelers),
			fmt.Sprintf("%d x Eye mask", travelers),
		)
	}

	if len(items) > maxMockItems {
		items = items[:maxMockItems]
	}
	return items
}

// Health always reports available: the mock has no failure modes.
func (m *Mock) Health() health.State {
	return health.State{Capability: health.Available}
}

// Ensure Mock implements Backend
var _ Backend = (*Mock)(nil)
