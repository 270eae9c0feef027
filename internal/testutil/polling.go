// Package testutil holds helpers for tests that wait on the event loop.
package testutil

import (
	"context"
	"fmt"
	"time"
)

// Default polling parameters for state that settles within a few loop
// iterations.
const (
	DefaultTimeout  = 2 * time.Second
	DefaultInterval = 5 * time.Millisecond
)

// Poll checks condition every interval until it returns true, timeout
// elapses, or ctx is done.
func Poll(ctx context.Context, condition func() bool, timeout, interval time.Duration) error {
	_, err := WaitForState(ctx, condition, func(ok bool) bool { return ok }, timeout, interval)
	return err
}

// WaitForState polls getter until predicate accepts its value, returning
// the last value read. On timeout the error names the threshold and the
// last value.
func WaitForState[T any](ctx context.Context, getter func() T, predicate func(T) bool, timeout, interval time.Duration) (T, error) {
	deadline := time.Now().Add(timeout)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
		v := getter()
		if predicate(v) {
			return v, nil
		}
		if !time.Now().Before(deadline) {
			return v, fmt.Errorf("timeout after %v waiting for state, last value: %v", timeout, v)
		}
		timer.Reset(interval)
	}
}
