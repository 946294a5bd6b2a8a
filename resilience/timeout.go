package resilience

import (
	"context"
	"time"
)

// ExecuteWithTimeout runs op with a hard time budget. The operation
// receives a context that expires at the budget; if it has not returned
// by then the call is abandoned and ErrTimeout is returned while the
// operation finishes (or leaks its goroutine) in the background.
func ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
