// Package cache provides the cache store adapter for suggestion payloads.
//
// It defines a Cache interface with Redis and in-memory implementations,
// a circuit-breaking decorator that owns the backend's capability state,
// and TTL policy. The cache is an optional dependency: when it is down
// the adapter absorbs failures and the caller takes the direct path.
package cache
