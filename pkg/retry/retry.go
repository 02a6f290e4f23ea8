package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes a bounded fixed-delay retry loop. The zero value is not
// usable; build one with NewPolicy and override fields as needed.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// Retryable reports whether an error is worth another attempt. A nil
	// predicate treats every error as retryable.
	Retryable func(error) bool
	// Sleep is overridable for tests. Defaults to a context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy returns a policy with the given bounds and a default
// context-aware sleep.
func NewPolicy(maxAttempts int, delay time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Delay:       delay,
		Sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op up to MaxAttempts times, sleeping Delay between attempts.
// Non-retryable errors abort immediately. After the final attempt the last
// error is wrapped with the attempt count so callers see an aggregated,
// permanent failure.
func (p Policy) Do(ctx context.Context, op func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return fmt.Errorf("attempt %d failed permanently: %w", attempt, lastErr)
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return fmt.Errorf("retry aborted after attempt %d: %w", attempt, err)
		}
	}
	return fmt.Errorf("all %d attempts failed, last error: %w", p.MaxAttempts, lastErr)
}
