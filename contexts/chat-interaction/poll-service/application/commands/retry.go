package commands

import (
	"context"
	"math/rand/v2"
	"time"
)

// AttemptOutcome tags the result of one optimistic write attempt and of the
// retry loop as a whole.
type AttemptOutcome int

const (
	OutcomeApplied AttemptOutcome = iota + 1
	OutcomeConflict
	OutcomeExhausted
)

func (o AttemptOutcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeConflict:
		return "conflict"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

const DefaultMaxAttempts = 3

// retryOptimistic runs attempt up to maxAttempts times. It returns as soon as
// an attempt reports OutcomeApplied or fails with an error; OutcomeConflict
// moves on to the next attempt. When every attempt conflicts the returned
// outcome is OutcomeExhausted. A positive backoff sleeps a random duration in
// [0, backoff) between attempts.
func retryOptimistic(
	ctx context.Context,
	maxAttempts int,
	backoff time.Duration,
	attempt func(ctx context.Context, n int) (AttemptOutcome, error),
) (AttemptOutcome, int, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for n := 1; n <= maxAttempts; n++ {
		outcome, err := attempt(ctx, n)
		if err != nil {
			return outcome, n, err
		}
		if outcome != OutcomeConflict {
			return outcome, n, nil
		}
		if n == maxAttempts {
			break
		}
		if err := pause(ctx, backoff); err != nil {
			return OutcomeConflict, n, err
		}
	}
	return OutcomeExhausted, maxAttempts, nil
}

func pause(ctx context.Context, backoff time.Duration) error {
	if backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(rand.Int64N(int64(backoff))))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
