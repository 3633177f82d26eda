package main

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// rateLimitSignal is returned by the transport when the API rejects a call
// with HTTP 429. It is never surfaced to the user: callers convert it into a
// wait via rateLimiter.backoff and retry.
type rateLimitSignal struct {
	retryAfter time.Duration
}

func (s *rateLimitSignal) Error() string {
	return fmt.Sprintf("rate limited by source API (retry after %s)", s.retryAfter)
}

// rateLimiter throttles outbound API calls to a bounded average rate. It is
// a token bucket with a burst of one: grants are spaced at least one
// interval apart, so a rolling one-second window never sees more than the
// configured number of grants. One process-wide instance is shared by every
// caller; suspension is first-come-first-served through the mutex.
type rateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time // earliest instant the next call may be issued

	// injectable for tests
	nowFn   func() time.Time
	sleepFn func(context.Context, time.Duration) error
}

func newRateLimiter(perSecond float64) *rateLimiter {
	// round up so fractional rates never squeeze an extra grant into a window
	return &rateLimiter{
		interval: time.Duration(math.Ceil(float64(time.Second) / perSecond)),
		nowFn:    time.Now,
		sleepFn:  sleepCtx,
	}
}

// acquire blocks until issuing another call would not exceed the configured
// average rate. It never drops a caller; the only early exit is context
// cancellation.
func (l *rateLimiter) acquire(ctx context.Context) error {
	l.mu.Lock()
	now := l.nowFn()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	l.mu.Unlock()

	if wait := slot.Sub(now); wait > 0 {
		return l.sleepFn(ctx, wait)
	}
	return ctx.Err()
}

// backoff honors an explicit retry-after signal: no call is granted until
// the signaled duration has elapsed.
func (l *rateLimiter) backoff(retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until := l.nowFn().Add(retryAfter)
	if l.next.Before(until) {
		l.next = until
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
