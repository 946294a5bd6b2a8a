package trip

import (
	"reflect"
	"testing"
)

func validParams() Params {
	return Params{
		Destination: "Paris",
		StartDate:   "2026-06-01",
		Days:        5,
		Style:       "leisure",
		Transport:   "flight",
		Travelers:   []string{"Alice", "Bob"},
	}
}

func TestParams_Validate(t *testing.T) {
	if err := validParams().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestParams_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		field  string
	}{
		{"empty destination", func(p *Params) { p.Destination = "  " }, "destination"},
		{"bad date", func(p *Params) { p.StartDate = "06/01/2026" }, "start_date"},
		{"zero days", func(p *Params) { p.Days = 0 }, "days"},
		{"too many days", func(p *Params) { p.Days = 500 }, "days"},
		{"unknown style", func(p *Params) { p.Style = "luxurious" }, "style"},
		{"unknown transport", func(p *Params) { p.Transport = "rocket" }, "transport"},
		{"no travelers", func(p *Params) { p.Travelers = nil }, "travelers"},
		{"blank traveler", func(p *Params) { p.Travelers = []string{""} }, "travelers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)

			err := p.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Validate() error type = %T, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestParams_Normalized_SortsAndTrims(t *testing.T) {
	p := Params{
		Destination: "  Paris ",
		Days:        5,
		Style:       " Leisure",
		Transport:   "FLIGHT",
		Activities:  []string{"museums", "hiking", "museums", " hiking "},
		Travelers:   []string{"Bob", "Alice"},
	}

	n := p.Normalized()

	if n.Destination != "Paris" {
		t.Errorf("Destination = %q, want %q", n.Destination, "Paris")
	}
	if n.Style != "leisure" || n.Transport != "flight" {
		t.Errorf("Style/Transport = %q/%q, want leisure/flight", n.Style, n.Transport)
	}
	if want := []string{"hiking", "museums"}; !reflect.DeepEqual(n.Activities, want) {
		t.Errorf("Activities = %v, want %v", n.Activities, want)
	}
	if want := []string{"Alice", "Bob"}; !reflect.DeepEqual(n.Travelers, want) {
		t.Errorf("Travelers = %v, want %v", n.Travelers, want)
	}
}

func TestParams_Normalized_QuantizesWeather(t *testing.T) {
	p := validParams()
	p.Weather = &Weather{Summary: " mild ", TempC: 21.4449}

	n := p.Normalized()

	if n.Weather.Summary != "mild" {
		t.Errorf("Weather.Summary = %q, want %q", n.Weather.Summary, "mild")
	}
	if n.Weather.TempC != 21.4 {
		t.Errorf("Weather.TempC = %v, want 21.4", n.Weather.TempC)
	}
}

func TestParams_Normalized_DoesNotMutateOriginal(t *testing.T) {
	p := validParams()
	p.Activities = []string{"zoo", "aquarium"}

	_ = p.Normalized()

	if !reflect.DeepEqual(p.Activities, []string{"zoo", "aquarium"}) {
		t.Errorf("original Activities mutated: %v", p.Activities)
	}
}
