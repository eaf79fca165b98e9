package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryPolicy returns the backoff schedule for transient store failures:
// exponential from 50ms, capped at 1s intervals, giving up after 5s.
func retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithContext(b, ctx)
}

// withRetry runs op, retrying on TransportError. NotFound and Conflict
// are permanent and surface immediately.
func withRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsTransport(err) {
			return err
		}
		return backoff.Permanent(err)
	}, retryPolicy(ctx))
}
