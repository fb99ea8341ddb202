package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// Retry policy names accepted by PolicyFor.
const (
	PolicyAll       = "all"
	PolicyTransient = "transient"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
)

// PermanentError marks a failure that must not be retried regardless of the policy.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so that Retrier.Do returns it after the current attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// RetryPolicy reports whether a failed attempt is worth repeating.
type RetryPolicy func(err error) bool

// RetryAll retries every failure.
func RetryAll(error) bool {
	return true
}

// RetryTransient retries only failures that can go away on their own: network errors,
// timeouts and server selection failures.
func RetryTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var sse topology.ServerSelectionError
	return errors.As(err, &sse) || errors.Is(err, topology.ErrServerSelectionTimeout)
}

// PolicyFor resolves a policy name; an empty name selects PolicyAll.
func PolicyFor(name string) (RetryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyAll:
		return RetryAll, nil
	case PolicyTransient:
		return RetryTransient, nil
	default:
		return nil, fmt.Errorf("unknown retry policy %q", name)
	}
}

// Retrier runs an operation up to MaxRetries times. After the failure of attempt n
// (counted from zero) it waits Delay(n) before the next attempt; there is no wait after
// the last attempt.
type Retrier struct {
	MaxRetries int
	// BaseDelay is raised to the attempt number, in seconds.
	BaseDelay time.Duration
	// AttemptTimeout bounds every single attempt; zero means unbounded.
	AttemptTimeout time.Duration
	Policy         RetryPolicy
	// Sleep waits between attempts. It returns early with ctx.Err() when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait with the number of attempts made so far.
	OnRetry func(attempts int, delay time.Duration, err error)
}

// Delay returns the wait that follows the failure of the given zero-based attempt:
// BaseDelay (in seconds) raised to attempt. The result saturates at the largest
// representable duration.
func (r *Retrier) Delay(attempt int) time.Duration {
	base := r.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	seconds := math.Pow(base.Seconds(), float64(attempt))
	nanos := seconds * float64(time.Second)
	if math.IsInf(nanos, 0) || math.IsNaN(nanos) || nanos >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(nanos)
}

// Do calls fn until it succeeds, the retry budget is spent, the policy declines a
// failure, fn returns a Permanent error, or ctx is done. It returns the number of
// attempts made and the last error. A Permanent error is returned still wrapped.
func (r *Retrier) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	policy := r.Policy
	if policy == nil {
		policy = RetryAll
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, cancelled(err, lastErr)
		}

		err := WithTimeout(ctx, r.AttemptTimeout, fn)
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		if IsPermanent(err) || !policy(err) {
			return attempt + 1, err
		}
		if attempt+1 == maxRetries {
			break
		}

		delay := r.Delay(attempt)
		if r.OnRetry != nil {
			r.OnRetry(attempt+1, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return attempt + 1, cancelled(err, lastErr)
		}
	}
	return maxRetries, lastErr
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func cancelled(ctxErr, lastErr error) error {
	if lastErr == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
}
