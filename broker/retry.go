package broker

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is an explicit, testable retry contract applied functionally
// around a single broker call. Retryable errors back off exponentially
// (BaseDelay * 2^attempt); fatal errors abort immediately. Total wait is
// bounded by the sum of the backoff terms.
type RetryPolicy struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // first backoff delay

	// OnRetry, if set, is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy gives 3 retries + 1 final attempt with 500ms base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
	}
}

// Do runs fn, retrying retryable failures. The last error after exhausting
// all attempts is wrapped in ErrBrokerUnavailable; fatal errors are
// returned as-is on first sight.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	var last error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn()
		if last == nil {
			return nil
		}
		if !IsRetryable(last) {
			return last
		}
		if attempt == p.MaxRetries {
			break
		}

		delay := p.BaseDelay << uint(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, last)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s after %d attempts: %w: %w",
		op, p.MaxRetries+1, ErrBrokerUnavailable, last)
}
