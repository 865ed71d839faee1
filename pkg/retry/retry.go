package retry

import (
	"context"
	"errors"
	"time"

	errs "civitdl/pkg/errors"
	"civitdl/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first one
	MaxAttempts int
	// Backoff strategy to use
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each backoff sleep
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep waits between attempts; defaults to Wait
	Sleep func(ctx context.Context, d time.Duration) error
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig returns three attempts with the default exponential backoff
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Sleep:       Wait,
	}
}

// DefaultRetryIf retries only the transient failure kinds
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errs.IsRetryable(errs.KindOf(err))
}

// Do executes op until it succeeds, fails with a non-retryable error, or
// runs out of attempts. The returned error is always the last error op
// produced, unwrapped, unless ctx ended during a backoff.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = DefaultExponentialBackoff()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Wait
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if ctx.Err() != nil {
			return err
		}

		if !retryIf(err) {
			if cfg.Logger != nil {
				cfg.Logger.DebugWithFields("error is not retryable", map[string]interface{}{
					"attempt": attempt,
					"error":   err.Error(),
				})
			}
			return err
		}

		if attempt >= maxAttempts {
			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
					"attempts":   attempt,
					"last_error": err.Error(),
				})
			}
			return err
		}

		delay := backoff.NextDelay(attempt)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"error":        err.Error(),
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": maxAttempts,
			})
		}

		if werr := sleep(ctx, delay); werr != nil {
			return werr
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)

	return result, err
}

// WithLogger returns a copy of cfg that logs through l
func (c *Config) WithLogger(l logger.Logger) *Config {
	copied := *c
	copied.Logger = l
	return &copied
}

// WithRetryIf returns a copy of cfg with a different retry predicate
func (c *Config) WithRetryIf(fn func(error) bool) *Config {
	copied := *c
	copied.RetryIf = fn
	return &copied
}
