package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed right now without blocking
	Allow() bool
	// Wait blocks until the limiter allows another request or ctx ends
	Wait(ctx context.Context) error
	// Reset resets the limiter state
	Reset()
}

// SleepFunc waits for d or until ctx ends
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pacer inserts a fixed pause before every request except the first one
type Pacer struct {
	interval time.Duration
	sleep    SleepFunc
	mu       sync.Mutex
	started  bool
}

// NewPacer creates a pacer that pauses for interval between requests
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval, sleep: sleepCtx}
}

// WithSleep replaces the sleep function, mainly for tests
func (p *Pacer) WithSleep(fn SleepFunc) *Pacer {
	p.sleep = fn
	return p
}

// Allow reports whether the next Wait would return without pausing
func (p *Pacer) Allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.started || p.interval <= 0
}

// Wait pauses for the interval unless this is the first request
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	first := !p.started
	p.started = true
	p.mu.Unlock()

	if first || p.interval <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, p.interval)
}

// Reset makes the next Wait free again
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// PerMinute returns a sliding window allowing n requests per minute, or nil
// when n is not positive.
func PerMinute(n int) *SlidingWindow {
	if n <= 0 {
		return nil
	}
	return NewSlidingWindow(n, time.Minute)
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Wait blocks until a request is allowed or ctx ends
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		sw.mu.Lock()
		timeToWait := 100 * time.Millisecond
		if len(sw.requests) > 0 {
			timeToWait = sw.windowSize - sw.now().Sub(sw.requests[0])
		}
		sw.mu.Unlock()

		if err := sleepCtx(ctx, timeToWait); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}
