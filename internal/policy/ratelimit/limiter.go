// Package ratelimit paces requests to the post source and escalates the delay
// with Fibonacci backoff while requests keep failing.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/JakeFAU/xfix/internal/telemetry"
)

// fibonacci holds the backoff multipliers; indexes past the end reuse the
// last element.
var fibonacci = []int64{1, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144}

// Config holds rate limiter configuration.
type Config struct {
	MinDelay   time.Duration
	MaxDelay   time.Duration
	MaxBackoff time.Duration
}

// Backoff is the persisted form of the limiter's escalation state.
type Backoff struct {
	Delay time.Duration
	Index int
}

// Limiter spaces fetches with a random delay and switches to a Fibonacci
// backoff delay after errors.
type Limiter struct {
	mu       sync.Mutex
	cfg      Config
	backoff  time.Duration
	fibIndex int

	uniform func() float64
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Limiter{
		cfg:     cfg,
		uniform: rand.Float64,
		sleep:   sleepContext,
	}
}

// BaseDelay is the midpoint of the normal delay range.
func (l *Limiter) BaseDelay() time.Duration {
	return (l.cfg.MinDelay + l.cfg.MaxDelay) / 2
}

// NormalDelay draws a delay uniformly from [MinDelay, MaxDelay].
func (l *Limiter) NormalDelay() time.Duration {
	span := float64(l.cfg.MaxDelay - l.cfg.MinDelay)
	return l.cfg.MinDelay + time.Duration(l.uniform()*span)
}

// CurrentDelay returns the backoff delay while backing off, otherwise a
// fresh normal delay.
func (l *Limiter) CurrentDelay() time.Duration {
	l.mu.Lock()
	backoff := l.backoff
	l.mu.Unlock()
	if backoff > 0 {
		return backoff
	}
	return l.NormalDelay()
}

// Wait blocks for the current delay, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	delay := l.CurrentDelay()
	if delay <= 0 {
		return nil
	}
	if err := l.sleep(ctx, delay); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	telemetry.ObserveRateLimitDelay(delay)
	return nil
}

// RecordSuccess clears any backoff.
func (l *Limiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = 0
	l.fibIndex = 0
	telemetry.SetBackoffDelay(0)
}

// RecordError advances the backoff and returns the new delay. The multiplier
// is read before the index moves, so consecutive errors use fib[0], fib[1], ...
func (l *Limiter) RecordError() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := min(l.fibIndex, len(fibonacci)-1)
	delay := l.BaseDelay() * time.Duration(fibonacci[idx])
	if l.cfg.MaxBackoff > 0 && delay > l.cfg.MaxBackoff {
		delay = l.cfg.MaxBackoff
	}
	l.backoff = delay
	l.fibIndex++
	telemetry.SetBackoffDelay(delay)
	return delay
}

// Snapshot returns the escalation state for persistence.
func (l *Limiter) Snapshot() Backoff {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Backoff{Delay: l.backoff, Index: l.fibIndex}
}

// Restore resumes a persisted escalation state.
func (l *Limiter) Restore(b Backoff) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b.Delay < 0 || b.Index < 0 {
		return
	}
	if l.cfg.MaxBackoff > 0 && b.Delay > l.cfg.MaxBackoff {
		b.Delay = l.cfg.MaxBackoff
	}
	l.backoff = b.Delay
	l.fibIndex = b.Index
	telemetry.SetBackoffDelay(b.Delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
