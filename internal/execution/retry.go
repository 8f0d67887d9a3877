package execution

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds attempts and the delay after each failed attempt.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff returns the wait after failed attempt n (1-based).
	Backoff func(attempt int) time.Duration
}

// Fixed waits d between attempts.
func Fixed(attempts int, d time.Duration) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Backoff: func(int) time.Duration { return d }}
}

// Exponential waits base, 2·base, 4·base, ...
func Exponential(attempts int, base time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		Backoff: func(attempt int) time.Duration {
			return base * time.Duration(1<<(attempt-1))
		},
	}
}

// Call-site policies.
var (
	ConfirmPolicy = Fixed(5, 300*time.Millisecond)
	SellPolicy    = Exponential(3, 200*time.Millisecond)
	FetchPolicy   = Exponential(3, 500*time.Millisecond)
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, or attempts run
// out. The last error is returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return err
}
