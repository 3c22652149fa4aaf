package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Backoff describes a retry schedule. Zero values take the defaults: 3
// attempts, 100ms first delay doubling up to 5s. Jitter is the fraction by
// which each delay may randomly vary; zero disables it.
type Backoff struct {
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Jitter     float64
	Multiplier float64
}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 100 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 5 * time.Second
	}
	if b.Multiplier <= 0 {
		b.Multiplier = 2
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}

// delay is the wait after the given failed attempt, counting from 1.
func (b Backoff) delay(attempt int) time.Duration {
	d := float64(b.Initial)
	for range attempt - 1 {
		d *= b.Multiplier
		if d >= float64(b.Max) {
			break
		}
	}
	d += d * b.Jitter * (2*rand.Float64() - 1)
	return time.Duration(min(max(d, 0), float64(b.Max)))
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, runs out of
// attempts, or ctx is done.
func Retry(ctx context.Context, name string, b Backoff, fn func(ctx context.Context) error) error {
	b = b.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == b.Attempts {
			return fmt.Errorf("%s: %d attempts failed: %w", name, attempt, err)
		}
		wait := b.delay(attempt)
		logger.Warn("attempt failed, retrying", "attempt", attempt, "max_attempts", b.Attempts, "next_delay", wait, "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry aborted: %w", name, errors.Join(ctx.Err(), err))
		}
	}
}
