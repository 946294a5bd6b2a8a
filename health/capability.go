package health

import (
	"context"
	"sync"
	"time"
)

// Capability represents what a dependency can currently do.
type Capability int

const (
	// Available indicates the dependency is functioning normally.
	Available Capability = iota
	// Degraded indicates the dependency is functioning but with issues.
	Degraded
	// Unavailable indicates the dependency is not functioning.
	Unavailable
)

// String returns the string representation of the capability.
func (c Capability) String() string {
	switch c {
	case Available:
		return "available"
	case Degraded:
		return "degraded"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// State is a snapshot of a dependency's capability and the time of its
// last transition. Adapters hand out copies; only the owning adapter
// mutates the underlying tracker.
type State struct {
	Capability Capability
	Since      time.Time
}

// Tracker records capability transitions for a single dependency.
// It is owned by that dependency's adapter and safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	state State
}

// NewTracker creates a tracker starting in the given capability.
func NewTracker(c Capability) *Tracker {
	return &Tracker{state: State{Capability: c, Since: time.Now()}}
}

// Set transitions the tracker to the given capability. The transition
// timestamp only moves when the capability actually changes.
func (t *Tracker) Set(c Capability) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Capability != c {
		t.state = State{Capability: c, Since: time.Now()}
	}
}

// State returns a snapshot of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Checker is the interface adapters expose for health inspection.
type Checker interface {
	// Name returns the name of the dependency.
	Name() string

	// Check reports the dependency's current state.
	Check(ctx context.Context) State
}

// CheckerFunc is an adapter to allow ordinary functions to be used as Checkers.
type CheckerFunc struct {
	name string
	fn   func(context.Context) State
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) State) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the name of this checker.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check reports the current state.
func (f *CheckerFunc) Check(ctx context.Context) State {
	return f.fn(ctx)
}
