package overlay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/libp2p/go-libp2p/core/peer"
)

// tracker remembers when each discovered peer was last announced. Entries
// older than ttl, or pushed out by capacity, are reported as expired.
type tracker struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.Mutex
	seen    *lru.Cache[peer.ID, time.Time]
	evicted []peer.ID
}

func newTracker(size int, ttl time.Duration, clk clock.Clock) (*tracker, error) {
	if clk == nil {
		clk = clock.New()
	}
	t := &tracker{clock: clk, ttl: ttl}
	cache, err := lru.NewWithEvict[peer.ID, time.Time](size, func(id peer.ID, _ time.Time) {
		// Runs inside Add/Remove, which are only called with t.mu held.
		t.evicted = append(t.evicted, id)
	})
	if err != nil {
		return nil, fmt.Errorf("discovery tracker: %w", err)
	}
	t.seen = cache
	return t, nil
}

// Seen records an announcement. fresh is true the first time a peer is seen
// since its last expiry; expired lists peers pushed out by capacity.
func (t *tracker) Seen(id peer.ID) (fresh bool, expired []peer.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, known := t.seen.Peek(id)
	t.seen.Add(id, t.clock.Now())
	return !known, t.takeEvicted()
}

// Sweep expires every peer not seen within ttl.
func (t *tracker) Sweep() []peer.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-t.ttl)
	for _, id := range t.seen.Keys() {
		if last, ok := t.seen.Peek(id); ok && last.Before(cutoff) {
			t.seen.Remove(id)
		}
	}
	return t.takeEvicted()
}

// Len reports how many peers are currently tracked.
func (t *tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seen.Len()
}

func (t *tracker) takeEvicted() []peer.ID {
	if len(t.evicted) == 0 {
		return nil
	}
	out := t.evicted
	t.evicted = nil
	return out
}

// run sweeps every interval until ctx ends.
func (t *tracker) run(ctx context.Context, interval time.Duration, expire func(peer.ID)) {
	ticker := t.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range t.Sweep() {
				expire(id)
			}
		}
	}
}
