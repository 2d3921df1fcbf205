package chat

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// retryOptions tunes withBackoff. Zero values fall back to the defaults
// below.
type retryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// OnPersistent429 is consulted after consecutive 429 responses. If it
	// returns true the attempt counter resets and retrying continues,
	// typically after the caller switched to a fallback model.
	OnPersistent429 func(ctx context.Context) bool

	Logger *slog.Logger
}

const (
	defaultMaxAttempts  = 5
	defaultInitialDelay = 5 * time.Second
	defaultMaxDelay     = 30 * time.Second

	// consecutive 429s before the fallback handler is consulted.
	persistent429Threshold = 2
)

func (o retryOptions) withDefaults() retryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = defaultInitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// withBackoff runs fn until it succeeds, the attempt budget is exhausted, or
// the context is cancelled. Only 429 and 5xx statuses are retried; a
// server-provided Retry-After overrides the computed delay. Cancellation is
// returned immediately and never retried.
func withBackoff(ctx context.Context, opts retryOptions, fn func() error) error {
	opts = opts.withDefaults()

	delay := opts.InitialDelay
	consecutive429 := 0

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if !IsRetryableStatus(lastErr) {
			return lastErr
		}

		if code, _ := StatusCode(lastErr); code == 429 {
			consecutive429++
		} else {
			consecutive429 = 0
		}

		if consecutive429 >= persistent429Threshold && opts.OnPersistent429 != nil {
			if opts.OnPersistent429(ctx) {
				opts.Logger.Info("switched model after persistent rate limiting, resetting retry budget")
				attempt = 0
				consecutive429 = 0
				delay = opts.InitialDelay
				continue
			}
		}

		if attempt == opts.MaxAttempts {
			break
		}

		wait := jitter(delay)
		if ra := retryAfter(lastErr); ra > 0 {
			wait = ra
		}
		opts.Logger.Warn("retrying model call",
			"attempt", attempt,
			"delay", wait,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
	return lastErr
}

// jitter spreads d by ±30% so synchronized clients do not retry in lockstep.
func jitter(d time.Duration) time.Duration {
	f := 0.7 + 0.6*rand.Float64()
	return time.Duration(float64(d) * f)
}
