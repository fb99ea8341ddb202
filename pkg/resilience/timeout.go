package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a single attempt exceeds its time limit.
var ErrTimeout = errors.New("attempt timed out")

// WithTimeout runs fn with a deadline of timeout. A non-positive timeout runs fn with ctx
// unchanged. fn runs on the caller's goroutine and must honour ctx. A failure returned after
// the deadline passed is reported as ErrTimeout joined with fn's error; a success is kept
// even when it arrives late. Cancellation of the parent ctx is reported as is.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(attemptCtx)
	if err == nil || ctx.Err() != nil || !errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return err
	}
	return errors.Join(ErrTimeout, err)
}
