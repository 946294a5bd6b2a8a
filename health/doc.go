// Package health models per-dependency capability and the degradation
// policy that maps a dependency's role and capability to a behavior.
//
// Each adapter owns its own capability state; there is no aggregate
// "system health" flag.
package health
