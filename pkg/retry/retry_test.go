package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	p := NewPolicy(3, 2*time.Second)
	sleeps := 0
	p.Sleep = func(ctx context.Context, d time.Duration) error { sleeps++; return nil }

	calls := 0
	err := p.Do(context.Background(), func() error { calls++; return nil })

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, sleeps)
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := NewPolicy(3, 2*time.Second)
	sleeps := 0
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		assert.Equal(t, 2*time.Second, d)
		return nil
	}

	boom := errors.New("connection refused")
	calls := 0
	err := p.Do(context.Background(), func() error { calls++; return boom })

	assert.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, sleeps)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
}

func TestDoRecoversMidway(t *testing.T) {
	p := NewPolicy(3, time.Second)
	p.Sleep = func(ctx context.Context, d time.Duration) error { return nil }

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("timeout")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoNonRetryableAbortsImmediately(t *testing.T) {
	p := NewPolicy(3, time.Second)
	sleeps := 0
	p.Sleep = func(ctx context.Context, d time.Duration) error { sleeps++; return nil }

	permanent := errors.New("401 unauthorized")
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := p.Do(context.Background(), func() error { calls++; return permanent })

	assert.Error(t, err)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, sleeps)
	assert.Contains(t, err.Error(), "permanently")
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	p := NewPolicy(3, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Do(ctx, func() error { calls++; return errors.New("timeout") })

	assert.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
