// Package retry re-runs operations that fail with a recognised transient error.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMaxAttemptsExceeded wraps the last error once the attempt budget is spent.
var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

// Backoff selects how the delay grows between attempts.
type Backoff int

const (
	// Linear waits Delay*attempt before the next attempt.
	Linear Backoff = iota
	// Exponential doubles the delay after every attempt.
	Exponential
)

const (
	defaultMaxAttempts = 3
	defaultDelay       = time.Second
	defaultMaxDelay    = 30 * time.Second
)

// Config configures Retry.
type Config struct {
	// MaxAttempts counts the first call.
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
	Backoff     Backoff
	// IsRetryable decides whether an error earns another attempt. Nil means
	// nothing is retried.
	IsRetryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// OnStatus returns a predicate matching errors whose upstream status is exactly code.
func OnStatus(code int) func(error) bool {
	return func(err error) bool {
		var sc StatusCoder
		if errors.As(err, &sc) {
			return sc.HTTPStatus() == code
		}
		return false
	}
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempt budget runs out or ctx is done.
func Retry(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Delay <= 0 {
		cfg.Delay = defaultDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if cfg.IsRetryable == nil || !cfg.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := cfg.wait(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, wait, lastErr)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, cfg.MaxAttempts, lastErr)
}

func (c Config) wait(attempt int) time.Duration {
	var d time.Duration
	switch c.Backoff {
	case Exponential:
		d = c.Delay << (attempt - 1)
	default:
		d = c.Delay * time.Duration(attempt)
	}
	if d > c.MaxDelay || d <= 0 {
		d = c.MaxDelay
	}
	return d
}
