package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay to wait after the given failed attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Base per attempt and clamps it to [MinDelay, MaxDelay]
type ExponentialBackoff struct {
	// Multiplier is the delay unit for the first attempt
	Multiplier time.Duration
	// Base is the growth factor per attempt
	Base float64
	// MinDelay is the lower clamp
	MinDelay time.Duration
	// MaxDelay is the upper clamp
	MaxDelay time.Duration
	// JitterFactor adds randomness to avoid thundering herd (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff of 1s * 2^(n-1), clamped to [2s, 10s]
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Multiplier: 1 * time.Second,
		Base:       2.0,
		MinDelay:   2 * time.Second,
		MaxDelay:   10 * time.Second,
	}
}

// NextDelay calculates the next delay with exponential backoff and optional jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := eb.Base
	if base <= 0 {
		base = 2.0
	}

	delay := float64(eb.Multiplier) * math.Pow(base, float64(attempt-1))

	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	// The floor is applied last so jitter never undercuts it
	if delay < float64(eb.MinDelay) {
		delay = float64(eb.MinDelay)
	}
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
