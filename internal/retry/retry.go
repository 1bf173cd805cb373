package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPermanent marks failures that retrying cannot fix: missing binaries,
// rejected credentials, bad configuration. Wrap with Permanent() to make
// Do() stop immediately instead of burning the remaining attempts.
var ErrPermanent = errors.New("permanent failure")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
func (e *permanentError) Is(target error) bool {
	return target == ErrPermanent
}

// Permanent wraps err so Do treats it as fail-fast.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked fail-fast.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

/**
 * Policy is an explicit bounded-retry rule passed per call site
 * @property {int} maxAttempts - Total attempts including the first
 * @property {duration} delay - Wait between attempts
 * @property {float64} backoff - Multiplier applied to delay after each
 *           attempt; 0 or 1 keeps the delay fixed
 */
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     float64
}

// Fixed returns a policy with a constant delay between attempts.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Delay: delay}
}

// Exponential returns a policy whose delay grows by factor after each attempt.
func Exponential(attempts int, delay time.Duration, factor float64) Policy {
	return Policy{MaxAttempts: attempts, Delay: delay, Backoff: factor}
}

/**
 * Do runs fn until it succeeds, the attempts are exhausted, a permanent
 * failure is returned, or ctx is cancelled
 * @returns {error} nil on success; the last attempt's error otherwise
 * @description
 * - Transient errors consume an attempt and wait out the delay
 * - Errors wrapped with Permanent() abort right away (configuration and
 *   auth failures must surface to the caller, not be retried)
 */
func Do(ctx context.Context, p Policy, fn func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	delay := p.Delay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			if p.Backoff > 1 {
				delay = time.Duration(float64(delay) * p.Backoff)
			}
		}
	}
	return fmt.Errorf("%d attempts failed: %w", p.MaxAttempts, lastErr)
}
