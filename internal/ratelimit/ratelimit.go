// Package ratelimit provides the outbound rate limiter for the remote
// rendering backend. It is soft backpressure for a service with an
// unspecified quota: operations queue until their slot arrives rather than
// being rejected, and no two throttled operations against the same limiter
// begin less than the configured interval apart. It does not implement
// distributed or multi-process limiting.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter spaces operation starts by a fixed interval.
type Limiter struct {
	interval time.Duration
	mutex    sync.Mutex
	next     time.Time
}

// New creates a limiter with the given minimum interval between operation
// starts. A zero or negative interval disables spacing.
func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Throttle runs op once the limiter's next slot arrives. Concurrent callers
// queue: each reserves the slot after the previously reserved one, so
// starts stay at least the interval apart in reservation order. A context
// cancellation while waiting returns the context error without running op;
// the reserved slot stays consumed.
func (l *Limiter) Throttle(ctx context.Context, op func(context.Context) error) error {
	wait := l.reserve()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return op(ctx)
}

// reserve claims the next start slot and returns how long to wait for it.
func (l *Limiter) reserve() time.Duration {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)

	return slot.Sub(now)
}

// Interval returns the configured spacing interval.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
