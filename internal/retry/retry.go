// Package retry provides a bounded exponential-backoff helper for transient
// (sdlcerr.KindTransient) errors, at most 3 attempts. No adapter in this tree
// calls it: AI, cloud and HTTP probe calls are each made once, and a
// transient error reaches the worker on the first failure.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ambient-sdlc/control-plane/internal/sdlcerr"
)

// MaxAttempts bounds every transient-error retry loop in the control plane.
const MaxAttempts = 3

// Do runs fn up to MaxAttempts times, backing off exponentially between
// attempts, but only when the returned error is sdlcerr.KindTransient. Any
// other error kind (or a non-sdlcerr error) is returned immediately.
func Do(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0 // bounded by attempt count below, not elapsed time

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !sdlcerr.Retryable(lastErr) {
			return lastErr
		}
		if attempt == MaxAttempts {
			break
		}
		wait := b.NextBackOff()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}
