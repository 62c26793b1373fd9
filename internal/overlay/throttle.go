package overlay

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// throttle spaces outgoing connection attempts so a burst of mDNS
// announcements does not open every dial at once.
type throttle struct {
	clock    clock.Clock
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func newThrottle(clk clock.Clock, interval time.Duration) *throttle {
	if interval <= 0 {
		return &throttle{clock: clk}
	}
	return &throttle{clock: clk, interval: interval}
}

// reserve claims the next free slot and returns how long the caller must
// wait before using it.
func (t *throttle) reserve() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	if t.next.Before(now) {
		t.next = now
	}
	wait := t.next.Sub(now)
	t.next = t.next.Add(t.interval)
	return wait
}

// wait blocks until the caller's slot arrives or ctx is done.
func (t *throttle) wait(ctx context.Context) error {
	if t == nil || t.interval <= 0 {
		return ctx.Err()
	}
	delay := t.reserve()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := t.clock.Timer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
