package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
	errPermanent = errors.New("permanent")
)

func TestDo(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		failures  []error
		wantErr   error
		wantCalls int
	}{
		{
			name:      "succeeds first time",
			policy:    Policy{MaxAttempts: 3},
			wantCalls: 1,
		},
		{
			name:      "succeeds after transient failures",
			policy:    Policy{MaxAttempts: 3},
			failures:  []error{errTransient, errTransient},
			wantCalls: 3,
		},
		{
			name:      "gives up after max attempts",
			policy:    Policy{MaxAttempts: 3},
			failures:  []error{errTransient, errTransient, errTransient, errTransient},
			wantErr:   errTransient,
			wantCalls: 3,
		},
		{
			name: "fatal error stops immediately",
			policy: Policy{
				MaxAttempts: 3,
				Fatal:       func(err error) bool { return errors.Is(err, errFatal) },
			},
			failures:  []error{errFatal},
			wantErr:   errFatal,
			wantCalls: 1,
		},
		{
			name: "non retryable error stops immediately",
			policy: Policy{
				MaxAttempts: 3,
				Retryable:   func(err error) bool { return !errors.Is(err, errPermanent) },
			},
			failures:  []error{errTransient, errPermanent},
			wantErr:   errPermanent,
			wantCalls: 2,
		},
		{
			name:      "zero attempts still calls once",
			policy:    Policy{},
			failures:  []error{errTransient},
			wantErr:   errTransient,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), tt.policy, func(context.Context) error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestDoReturnsFatalErrorUnchanged(t *testing.T) {
	fatal := &customError{msg: "rate limited"}
	err := Do(context.Background(), Policy{
		MaxAttempts: 3,
		Fatal:       func(error) bool { return true },
	}, func(context.Context) error {
		return fatal
	})

	var target *customError
	require.ErrorAs(t, err, &target)
	assert.Same(t, fatal, target)
}

func TestDoNotifiesWithBackoffSchedule(t *testing.T) {
	type wait struct {
		attempt int
		next    time.Duration
	}
	var waits []wait

	err := Do(context.Background(), Policy{
		MaxAttempts: 3,
		Backoff:     Linear(time.Millisecond),
		Notify: func(attempt int, err error, next time.Duration) {
			waits = append(waits, wait{attempt: attempt, next: next})
		},
	}, func(context.Context) error {
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, []wait{
		{attempt: 1, next: time.Millisecond},
		{attempt: 2, next: 2 * time.Millisecond},
	}, waits)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, Policy{
		MaxAttempts: 5,
		Backoff:     Linear(time.Hour),
	}, func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffFunctions(t *testing.T) {
	linear := Linear(time.Second)
	assert.Equal(t, time.Second, linear(1))
	assert.Equal(t, 2*time.Second, linear(2))
	assert.Equal(t, 3*time.Second, linear(3))

	exponential := Exponential(500 * time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, exponential(1))
	assert.Equal(t, time.Second, exponential(2))
	assert.Equal(t, 2*time.Second, exponential(3))
	assert.Equal(t, 500*time.Millisecond, exponential(0))
}

func TestScheduleFollowsPolicyBackoff(t *testing.T) {
	tests := []struct {
		name    string
		backoff func(int) time.Duration
		want    []time.Duration
	}{
		{name: "linear listing", backoff: Linear(time.Second), want: []time.Duration{time.Second, 2 * time.Second}},
		{name: "exponential clone", backoff: Exponential(500 * time.Millisecond), want: []time.Duration{500 * time.Millisecond, time.Second}},
		{name: "no backoff", want: []time.Duration{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &schedule{next: tt.backoff}
			var got []time.Duration
			for range tt.want {
				got = append(got, s.NextBackOff())
			}
			assert.Equal(t, tt.want, got)

			s.Reset()
			assert.Equal(t, tt.want[0], s.NextBackOff())
		})
	}
}

func TestDoPassesOneBasedAttemptToBackoff(t *testing.T) {
	var seen []int
	var waits []time.Duration

	err := Do(context.Background(), Policy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			seen = append(seen, attempt)
			return Exponential(time.Microsecond)(attempt)
		},
		Notify: func(_ int, _ error, next time.Duration) {
			waits = append(waits, next)
		},
	}, func(context.Context) error {
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, []time.Duration{time.Microsecond, 2 * time.Microsecond}, waits)
}

type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}
