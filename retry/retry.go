// Package retry runs an operation again after failures, waiting exponentially
// longer between attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

// Policy bounds the number of attempts and the waits between them.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultPolicy waits 2s, then 4s, capped at 10s, for at most three attempts.
var DefaultPolicy = Policy{
	MaxAttempts:     3,
	InitialInterval: 2 * time.Second,
	MaxInterval:     10 * time.Second,
	Multiplier:      2.0,
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.RandomizationFactor = 0
	return b
}

// Permanent marks err as not worth another attempt.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls fn until it succeeds, returns a Permanent error, the context is
// done, or the policy's attempts are used up. The last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	op := func() (T, error) {
		attempt++
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return fn(ctx)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logrus.WithFields(logrus.Fields{
				"attempt":     attempt,
				"maxAttempts": attempts,
				"wait":        wait,
				"error":       err,
			}).Warn("Attempt failed, retrying")
		}),
	)
}
