// Package retry runs an operation under a bounded retry policy.
//
// A Policy names how many attempts an operation gets, how long to wait after
// each failed attempt, and which errors end the loop early: a fatal error is
// handed back to the caller untouched, a non-retryable one stops the loop
// without waiting. The scheduling itself is delegated to cenkalti/backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first one.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Backoff returns the wait after the given failed attempt (1-based).
	// A nil Backoff retries immediately.
	Backoff func(attempt int) time.Duration

	// Retryable reports whether a failed attempt may be repeated.
	// A nil Retryable retries every error.
	Retryable func(err error) bool

	// Fatal reports whether an error must end the loop at once. Fatal is
	// checked before Retryable.
	Fatal func(err error) bool

	// Notify, when set, is called before each wait.
	Notify func(attempt int, err error, next time.Duration)
}

// Linear waits base*attempt after each failure.
func Linear(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Exponential waits base*2^(attempt-1) after each failure.
func Exponential(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base * time.Duration(1<<uint(attempt-1))
	}
}

// schedule adapts a Policy backoff function to backoff.BackOff.
type schedule struct {
	failures int
	next     func(int) time.Duration
}

func (s *schedule) NextBackOff() time.Duration {
	s.failures++
	if s.next == nil {
		return 0
	}
	return s.next(s.failures)
}

func (s *schedule) Reset() {
	s.failures = 0
}

// Do calls op until it succeeds, the policy gives up, or ctx is done. The
// returned error is the last error produced by op, or the context error.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		err := op(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if p.Fatal != nil && p.Fatal(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(&schedule{next: p.Backoff}),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if p.Notify != nil {
		opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
			p.Notify(attempt, err, next)
		}))
	}

	_, err := backoff.Retry(ctx, operation, opts...)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return err
}
