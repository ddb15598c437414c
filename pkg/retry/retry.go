// Package retry re-runs operations that fail with retryable errors.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
	apperrors "tokenq/pkg/errors"
)

// Strategy computes the delay before retry attempt n (1-indexed).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// ExponentialWithJitter returns a random delay in
// [0, min(Initial * 2^(attempt-1), Max)].
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter does not need crypto rand
}

// Do calls fn up to maxAttempts times. It stops at the first success, at the
// first error that apperrors.IsRetryable rejects, or when ctx is done. The
// last error is returned.
func Do(ctx context.Context, maxAttempts int, strategy Strategy, fn func(ctx context.Context, attempt int) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil || !apperrors.IsRetryable(err) || attempt == maxAttempts {
			return err
		}

		if ctx.Err() != nil {
			return err
		}

		timer := time.NewTimer(strategy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
