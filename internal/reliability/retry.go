package reliability

import (
	"context"
	"math"
	"time"
)

// Policy configures RetryWithBackoff. The zero value makes a single attempt.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration // 0 means uncapped

	// OnRetry is called before each sleep with the failed attempt number (from 0)
	OnRetry func(attempt int, delay time.Duration, err *FinancialError)
	// Sleep waits for d or until ctx is done; defaults to a timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is three retries starting at one second
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: time.Second}
}

// Delay returns the wait after the given failed attempt: BaseDelay * 2^attempt,
// saturating at math.MaxInt64 instead of overflowing, then capped by MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d > 0; i++ {
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do calls op up to p.MaxRetries+1 times. A failure classified as
// non-retryable is returned at once; otherwise the last error is returned
// once the budget is spent. Context cancellation stops the loop.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		classified := Classify(err)
		if !classified.Retryable || attempt == p.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, classified)
		}
		if err := sleep(ctx, delay); err != nil {
			break
		}
	}

	return zero, lastErr
}

// RetryWithBackoff runs op with maxRetries retries and exponential delays of
// baseDelay * 2^attempt.
func RetryWithBackoff[T any](ctx context.Context, op func(ctx context.Context) (T, error), maxRetries int, baseDelay time.Duration) (T, error) {
	return Do(ctx, Policy{MaxRetries: maxRetries, BaseDelay: baseDelay}, op)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
