// Package resilience provides the failure-isolation primitives the
// dependency adapters are built on.
//
//   - Circuit Breaker: isolates callers from a failing dependency with a
//     closed/open/half-open state machine. In half-open state exactly one
//     probe call is admitted; concurrent callers are rejected until the
//     probe resolves.
//
//   - Timeout: bounds any dependency call so nothing blocks indefinitely.
//
// The breaker reports its state as a health.Capability so adapters can
// expose it through their health surface.
package resilience
