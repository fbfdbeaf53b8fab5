// Package retry re-invokes fallible operations with linear backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/yolodolo42/gasbridge/internal/logging"
)

// ErrExhausted matches any error returned after the last attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds how often an operation is re-invoked.
// Attempt n (1-based) that fails is followed by a wait of BaseDelay*n.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      zerolog.Logger
}

// DefaultPolicy returns 3 attempts with a one second base delay.
func DefaultPolicy(logger zerolog.Logger) Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, Logger: logger}
}

// ExhaustedError carries the last failure after every attempt was used.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Is makes errors.Is(err, ErrExhausted) true.
func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so that Do returns it immediately without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do invokes op until it succeeds, returns a permanent error, the context is
// done, or MaxAttempts is reached. The zero value of T is returned on failure.
// A logger attached to ctx is used in place of p.Logger.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	logger := logging.FromContext(ctx, p.Logger)

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			logger.Error().
				Err(perm.err).
				Int("attempt", attempt).
				Msg("Operation failed with a non-retryable error")
			return zero, perm.err
		}

		lastErr = err
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("Attempt failed")

		if attempt == attempts {
			break
		}

		delay := p.BaseDelay * time.Duration(attempt)
		if delay <= 0 {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		}
	}

	logger.Error().
		Err(lastErr).
		Int("attempts", attempts).
		Msg("All attempts exhausted")

	return zero, &ExhaustedError{Attempts: attempts, Last: lastErr}
}
