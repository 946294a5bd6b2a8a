// Package fingerprint derives deterministic cache keys from trip
// parameters.
//
// Keys are namespaced with a prefix reserved for the suggestion
// subsystem and are stable across process restarts: no per-process salt
// is involved. The digest is a fast 128-bit non-cryptographic hash; the
// key space is not adversarial and the hash must not be reused for
// anything security-sensitive.
package fingerprint

import (
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/jonwraymond/packops/trip"
)

// Namespace is the key prefix reserved for suggestion cache entries.
const Namespace = "ai_suggestions"

// canonical is the fixed-order encoding of the fields that determine a
// suggestion set. Field order is part of the format; changing it changes
// every key.
type canonical struct {
	Destination string   `json:"destination"`
	StartDate   string   `json:"start_date"`
	Days        int      `json:"days"`
	Style       string   `json:"style"`
	Transport   string   `json:"transport"`
	Activities  []string `json:"activities"`
	Travelers   []string `json:"travelers"`
	Weather     string   `json:"weather"`
	TempC       float64  `json:"temp_c"`
}

// Derive maps trip parameters to their cache key, format
// "ai_suggestions:<32 hex digits>". Structurally equal parameter sets
// produce identical keys regardless of field ordering, case, or
// representation.
func Derive(p trip.Params) string {
	n := p.Normalized()

	c := canonical{
		Destination: strings.ToLower(n.Destination),
		StartDate:   n.StartDate,
		Days:        n.Days,
		Style:       n.Style,
		Transport:   n.Transport,
		Activities:  foldList(n.Activities),
		Travelers:   foldList(n.Travelers),
		Weather:     "unknown",
	}
	if n.Weather != nil {
		c.Weather = strings.ToLower(n.Weather.Summary)
		c.TempC = n.Weather.TempC
	}

	// Struct fields marshal in declaration order, so the encoding is
	// deterministic without sorting at this level.
	data, err := json.Marshal(c)
	if err != nil {
		// Marshaling a struct of strings, ints and floats cannot fail.
		panic("fingerprint: canonical encoding failed: " + err.Error())
	}

	sum := xxh3.Hash128(data).Bytes()
	return Namespace + ":" + hex.EncodeToString(sum[:])
}

// foldList lowercases and re-sorts so that case differences cannot
// change either the elements or their order.
func foldList(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
