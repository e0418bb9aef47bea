package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errBusy  = errors.New("busy")
	errFatal = errors.New("fatal")
)

func isBusy(err error) bool { return errors.Is(err, errBusy) }

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Microsecond,
		MaxInterval:     10 * time.Microsecond,
		Multiplier:      2,
		Retryable:       isBusy,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), func(attempt int) error {
		calls++
		assert.Equal(t, 1, attempt)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	var attempts []int
	err := fastPolicy(5).Do(context.Background(), func(attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return errBusy
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), func(int) error {
		calls++
		return errFatal
	})
	assert.Equal(t, errFatal, err, "non-retryable errors are returned unchanged")
	assert.Equal(t, 1, calls)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	err := fastPolicy(4).Do(context.Background(), func(int) error {
		calls++
		return errBusy
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errBusy)
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Equal(t, 4, calls)
}

func TestDo_ZeroValueSingleAttempt(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(int) error {
		calls++
		return errBusy
	})
	assert.Equal(t, errBusy, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetry(t *testing.T) {
	p := fastPolicy(3)
	var next []int
	p.OnRetry = func(n int, err error, delay time.Duration) {
		next = append(next, n)
		assert.ErrorIs(t, err, errBusy)
		assert.GreaterOrEqual(t, delay, time.Duration(0))
	}

	err := p.Do(context.Background(), func(int) error { return errBusy })
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, []int{2, 3}, next)
}

func TestDo_ContextCancelled(t *testing.T) {
	p := fastPolicy(100)
	p.InitialInterval = time.Hour
	p.MaxInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Do(ctx, func(int) error {
		calls++
		cancel()
		return errBusy
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDefault(t *testing.T) {
	p := Default(isBusy)
	assert.Equal(t, 10, p.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, p.InitialInterval)
	assert.Equal(t, time.Second, p.MaxInterval)
	assert.True(t, p.Retryable(errBusy))
}
