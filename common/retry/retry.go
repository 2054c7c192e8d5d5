// Package retry provides exponential-backoff retries for transient failures.
//
// It is used by batch jobs (spreadsheet range reads in the migration tool)
// and best-effort lookups; the webhook serving path deliberately does not
// retry command operations, the user re-issues the command instead.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Config controls retry behaviour.
type Config struct {
	// Attempts is the total number of calls, including the first.
	// Values below 1 are treated as 1.
	Attempts int
	// Backoff is the delay before the second attempt; it doubles after
	// each failure up to MaxBackoff.
	Backoff time.Duration
	// MaxBackoff caps the per-attempt delay. Zero means 10s.
	MaxBackoff time.Duration
	// Retryable classifies errors; when nil every error is retried.
	Retryable func(error) bool
}

// Do calls fn until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. The error of the last attempt is returned.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	delay := cfg.Backoff
	var lastErr error

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(lastErr, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}

		if attempt < cfg.Attempts {
			slog.Debug("retry: attempt failed",
				"attempt", attempt, "attempts", cfg.Attempts,
				"delay", delay, "err", lastErr)
			select {
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
			if delay > cfg.MaxBackoff {
				delay = cfg.MaxBackoff
			}
		}
	}
	return lastErr
}
