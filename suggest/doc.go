// Package suggest orchestrates packing-suggestion requests across the
// cache, the generation backend, and their degraded paths.
//
// The ordering guarantee is fixed: validate, attach weather, derive the
// fingerprint, consult the cache, coordinate a single generation per
// fingerprint, fall back to the deterministic substitute. Optional
// dependencies (cache, weather, rate limiting) never surface their
// failures to callers; only invalid input and store failures do.
package suggest
