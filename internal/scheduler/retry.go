package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrRejected marks a thread-pool-saturation rejection, the only
// error class the retry policy in §4.5 acts on.
var ErrRejected = errors.New("scheduler: submission rejected")

// retryOnReject wraps op with the scheduler's fixed retry policy: up
// to 5 attempts, 1s initial delay, 2x multiplier, only for
// ErrRejected. Any other error aborts immediately. It reports how many
// attempts op was actually called, for retry-attempt instrumentation.
func retryOnReject(ctx context.Context, op func() error) (int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxElapsedTime = 0 // bounded by MaxAttempts below, not by elapsed wall time
	bo := backoff.WithMaxRetries(b, 4) // 4 retries + the first attempt = 5 total

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRejected) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
	return attempts, err
}
