package geometry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig controls exponential backoff for one object lookup.
type RetryConfig struct {
	MaxAttempts  int           // total attempts, at least 1
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // cap on any single delay
	Multiplier   float64       // backoff multiplier, typically 2.0
	AddJitter    bool          // randomize delays by up to ±25%
}

// DefaultRetryConfig retries three times over roughly a second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// withRetry runs fn until it succeeds, returns a permanent error, the
// attempts run out or ctx is done.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if isPermanent(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		wait := delay
		if cfg.AddJitter && wait > 0 {
			wait += time.Duration((rand.Float64() - 0.5) * 0.5 * float64(wait))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}
