// Package observe provides observability primitives for the suggestion
// pipeline.
//
// It is a pure instrumentation library: no caching, no generation, no I/O
// beyond exporter setup. Consumers wire the observer into the suggest
// orchestrator or server middleware.
package observe
