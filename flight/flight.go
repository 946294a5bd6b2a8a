// Package flight coordinates single-flight suggestion generation.
//
// Within a process, concurrent callers for the same fingerprint share
// one generation through golang.org/x/sync/singleflight. Across
// processes, a best-effort lease in the cache backend keeps a second
// process from duplicating the work; when the cache is unavailable the
// lease silently degrades to process-local exclusivity, which is
// acceptable because the fallback path is cheap.
package flight

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/packops/cache"
)

// LockPrefix namespaces cross-process generation leases.
const LockPrefix = "ai_lock"

// ErrHeldElsewhere is returned when another process held the lease for
// the whole wait horizon and its result never appeared.
var ErrHeldElsewhere = errors.New("flight: generation held elsewhere")

// Config configures the coordinator.
type Config struct {
	// Lease is the cross-process lock TTL. It must exceed the
	// generation timeout so the lease outlives a successful attempt,
	// and it force-releases a hung holder when it expires.
	// Default: 15 seconds
	Lease time.Duration

	// Poll is how often a non-holder checks whether the remote holder
	// finished. Default: 200ms
	Poll time.Duration
}

// Coordinator provides per-key mutual exclusion for the duration of one
// generation attempt.
type Coordinator struct {
	group singleflight.Group
	cache cache.Cache
	lease time.Duration
	poll  time.Duration
}

// New creates a coordinator. The cache may be nil for strictly local
// coordination.
func New(c cache.Cache, cfg Config) *Coordinator {
	if cfg.Lease <= 0 {
		cfg.Lease = 15 * time.Second
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 200 * time.Millisecond
	}
	return &Coordinator{
		cache: c,
		lease: cfg.Lease,
		poll:  cfg.Poll,
	}
}

// Do runs fn at most once per key among concurrent local callers; all of
// them receive the holder's result. If another process holds the lease,
// lookup is polled for that process's published result until the lease
// horizon; if nothing appears, ErrHeldElsewhere is returned and the
// caller takes its fallback.
//
// shared reports whether the result was produced by another local caller.
func (c *Coordinator) Do(
	ctx context.Context,
	key string,
	fn func(context.Context) ([]byte, error),
	lookup func(context.Context) ([]byte, bool),
) (data []byte, shared bool, err error) {
	v, err, shared := c.group.Do(key, func() (any, error) {
		if c.acquire(ctx, key) {
			defer c.release(key)
			return fn(ctx)
		}
		return c.await(ctx, lookup)
	})
	if err != nil {
		return nil, shared, err
	}
	data, _ = v.([]byte)
	return data, shared, nil
}

// acquire claims the cross-process lease. A cache error means the
// backend is unavailable, so exclusion degrades to this process only.
func (c *Coordinator) acquire(ctx context.Context, key string) bool {
	if c.cache == nil {
		return true
	}
	ok, err := c.cache.SetNX(ctx, LockPrefix+":"+key, []byte("1"), c.lease)
	if err != nil {
		return true
	}
	return ok
}

// release drops the lease. Best effort: if the delete is lost the lease
// TTL expires it anyway. Uses a fresh context so a caller's cancelled
// context cannot leave the lease pinned for the full TTL.
func (c *Coordinator) release(key string) {
	if c.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = c.cache.Delete(ctx, LockPrefix+":"+key)
}

// await polls for the remote holder's published result.
func (c *Coordinator) await(ctx context.Context, lookup func(context.Context) ([]byte, bool)) (any, error) {
	deadline := time.NewTimer(c.lease)
	defer deadline.Stop()
	tick := time.NewTicker(c.poll)
	defer tick.Stop()

	for {
		if data, ok := lookup(ctx); ok {
			return data, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrHeldElsewhere
		case <-tick.C:
		}
	}
}

// Forget removes a key's in-flight entry so a later call re-runs fn.
// Used by tests and after force-release.
func (c *Coordinator) Forget(key string) {
	c.group.Forget(key)
}
