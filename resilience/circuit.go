package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/packops/health"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls pass through normally.
	StateClosed State = iota
	// StateOpen means calls short-circuit without touching the dependency.
	StateOpen
	// StateHalfOpen means a single probe is testing whether the
	// dependency recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the
	// circuit opens. Default: 5
	MaxFailures int

	// Cooldown is how long the circuit stays open before admitting a
	// probe. Default: 30 seconds
	Cooldown time.Duration

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error counts as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// Breaker implements the circuit breaker pattern.
//
// After MaxFailures consecutive failures the breaker opens and every
// call fails fast with ErrCircuitOpen for the cooldown window. The first
// call after the cooldown claims the half-open probe slot; the claim is
// a compare-and-set on the breaker state, so under concurrency exactly
// one probe is outstanding and everyone else still sees ErrCircuitOpen
// until it resolves.
type Breaker struct {
	config BreakerConfig

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	probeInFlight bool
}

// NewBreaker creates a new circuit breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	// Apply defaults
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &Breaker{
		config: config,
		state:  StateClosed,
	}
}

// Execute runs the operation through the circuit breaker.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	probe, err := b.acquire()
	if err != nil {
		return err
	}

	err = op(ctx)
	b.settle(probe, err)
	return err
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// Capability maps the circuit state onto a dependency capability:
// closed is available, half-open is degraded, open is unavailable.
func (b *Breaker) Capability() health.Capability {
	switch b.State() {
	case StateClosed:
		return health.Available
	case StateHalfOpen:
		return health.Degraded
	default:
		return health.Unavailable
	}
}

// Reset returns the breaker to closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.state
	b.state = StateClosed
	b.failures = 0
	b.probeInFlight = false
	b.notify(old, StateClosed)
}

// acquire decides whether the call may proceed. The returned bool
// reports whether this call holds the half-open probe slot.
func (b *Breaker) acquire() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case StateOpen:
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if b.probeInFlight {
			// Another caller already owns the probe.
			return false, ErrCircuitOpen
		}
		b.probeInFlight = true
		return true, nil
	default:
		return false, nil
	}
}

func (b *Breaker) settle(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := b.config.IsFailure(err)
	old := b.state

	if probe {
		b.probeInFlight = false
		if failed {
			// Failed probe: back to open for another full cooldown.
			b.lastFailure = time.Now()
			b.state = StateOpen
		} else {
			b.state = StateClosed
			b.failures = 0
		}
		b.notify(old, b.state)
		return
	}

	if b.state != StateClosed {
		return
	}
	if failed {
		b.failures++
		b.lastFailure = time.Now()
		if b.failures >= b.config.MaxFailures {
			b.state = StateOpen
			b.notify(old, StateOpen)
		}
	} else {
		b.failures = 0
	}
}

// stateLocked advances open to half-open once the cooldown has elapsed.
func (b *Breaker) stateLocked() State {
	if b.state == StateOpen && time.Since(b.lastFailure) >= b.config.Cooldown {
		b.state = StateHalfOpen
		b.probeInFlight = false
		b.notify(StateOpen, StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.config.OnStateChange != nil {
		b.config.OnStateChange(from, to)
	}
}

// Snapshot contains circuit breaker statistics.
type Snapshot struct {
	State       State
	Failures    int
	LastFailure time.Time
}

// Snapshot returns current circuit breaker statistics.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		State:       b.stateLocked(),
		Failures:    b.failures,
		LastFailure: b.lastFailure,
	}
}
