package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy describes a capped Fibonacci backoff.
type RetryPolicy struct {
	// Attempts is the total number of tries, the first one included.
	Attempts uint64
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetryPolicy is used by remote clients that were not given one.
var DefaultRetryPolicy = RetryPolicy{
	Attempts: 5,
	Delay:    500 * time.Millisecond,
	MaxDelay: 5 * time.Second,
}

// Do runs task until it succeeds, returns a non retryable error or the
// attempts run out. Tasks mark transient failures with retry.RetryableError.
func (p RetryPolicy) Do(ctx context.Context, task func(ctx context.Context) error) error {
	if p.Attempts == 0 {
		p = DefaultRetryPolicy
	}
	if p.Delay <= 0 {
		p.Delay = DefaultRetryPolicy.Delay
	}

	b := retry.NewFibonacci(p.Delay)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	b = retry.WithMaxRetries(p.Attempts-1, b)

	var tries uint64
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		tries++
		return task(ctx)
	})
	if err != nil && tries >= p.Attempts {
		return fmt.Errorf("after %d attempts: %w", tries, err)
	}
	return err
}

// Retryable wraps err so the policy tries again.
func Retryable(err error) error {
	return retry.RetryableError(err)
}

// RetryableStatus reports whether an HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// ShouldRetry reports whether err is a transient transport failure.
// Context cancellation is permanent from the caller's point of view.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
