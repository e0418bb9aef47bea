// Package retry runs an operation under an explicit retry policy:
// a bounded number of attempts, an exponential backoff schedule with jitter,
// and a predicate selecting which errors are worth another attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted wraps the last error when every attempt failed with a
// retryable error.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy is a retry schedule. The zero value makes a single attempt.
type Policy struct {
	// MaxAttempts bounds the total number of attempts, the first included.
	MaxAttempts int
	// InitialInterval is the delay before the second attempt.
	InitialInterval time.Duration
	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration
	// Multiplier grows the delay after each attempt.
	Multiplier float64
	// Jitter randomizes each delay by up to ±Jitter of its value.
	Jitter float64
	// Retryable selects errors that warrant another attempt. nil retries
	// nothing.
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of attempt number next.
	OnRetry func(next int, err error, delay time.Duration)
}

// Default returns the schedule used for contended writes: up to 10 attempts
// starting at 10ms, doubling to at most 1s, with 25% jitter.
func Default(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:     10,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
		Jitter:          0.25,
		Retryable:       retryable,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}

	retries := 0
	if p.MaxAttempts > 1 {
		retries = p.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do calls op until it succeeds, fails with a non-retryable error, the
// attempts run out, or ctx is done. attempt counts from 1.
//
// A non-retryable error is returned unchanged. When attempts run out the
// last error is returned wrapped with ErrExhausted. Cancellation returns
// ctx.Err().
func (p Policy) Do(ctx context.Context, op func(attempt int) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := op(attempt)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = func(err error, delay time.Duration) {
			p.OnRetry(attempt+1, err, delay)
		}
	}

	err := backoff.RetryNotify(operation, p.backOff(ctx), notify)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if p.Retryable != nil && p.Retryable(err) {
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
	}
	return err
}
