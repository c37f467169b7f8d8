// Package retry provides a bounded fixed-backoff attempt helper for
// flaky external calls such as public IP lookups.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Do runs op up to attempts times with a fixed delay between attempts,
// returning the first successful result. The last error is returned once
// all attempts are exhausted. Zero attempts still runs op once. Context
// cancellation aborts between attempts.
func Do[T any](ctx context.Context, attempts uint, delay time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if attempts == 0 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)),
		ctx,
	)

	return backoff.RetryWithData(func() (T, error) {
		return op(ctx)
	}, policy)
}
