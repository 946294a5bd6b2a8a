// Package store persists trips and the suggestion audit trail in SQLite.
//
// The store is a required dependency: callers treat any store error as
// fatal for the operation rather than degrading, so the surface stays a
// plain error-returning API with no fallback logic.
package store
