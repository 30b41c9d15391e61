// Package retry is the single retry-with-backoff abstraction used by both
// the image download pipeline and the phase-level orchestrator loop.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes one retry budget: a fixed attempt ceiling and an
// exponential backoff between attempts.
type Policy struct {
	MaxAttempts     uint64 // total attempts, including the first
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Downloads retry fast; phases retry slow.
var (
	DownloadPolicy = Policy{MaxAttempts: 4, InitialInterval: 250 * time.Millisecond, MaxInterval: 5 * time.Second}
	PhasePolicy    = Policy{MaxAttempts: 3, InitialInterval: 2 * time.Second, MaxInterval: 30 * time.Second}
)

// Permanent marks err as non-retryable: Do and DoValue return it
// immediately without consuming further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func (p Policy) backoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.MaxElapsedTime = 0 // attempts are the only ceiling
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx)
}

// Do runs op under the policy until it succeeds, returns a permanent
// error, or the attempt ceiling is reached.
func (p Policy) Do(ctx context.Context, op func() error) error {
	return backoff.Retry(op, p.backoff(ctx))
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	return backoff.RetryWithData(op, p.backoff(ctx))
}
