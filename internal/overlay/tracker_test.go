package overlay

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerReportsFreshOnlyOnce(t *testing.T) {
	clk := clock.NewMock()
	tr, err := newTracker(8, time.Minute, clk)
	require.NoError(t, err)

	fresh, expired := tr.Seen(peer.ID("alice"))
	assert.True(t, fresh)
	assert.Empty(t, expired)

	clk.Add(10 * time.Second)
	fresh, _ = tr.Seen(peer.ID("alice"))
	assert.False(t, fresh, "repeat announcement must only refresh")
	assert.Equal(t, 1, tr.Len())
}

func TestTrackerSweepExpiresStalePeers(t *testing.T) {
	clk := clock.NewMock()
	tr, err := newTracker(8, time.Minute, clk)
	require.NoError(t, err)

	tr.Seen(peer.ID("alice"))
	clk.Add(40 * time.Second)
	tr.Seen(peer.ID("bob"))
	clk.Add(30 * time.Second)

	assert.Equal(t, []peer.ID{"alice"}, tr.Sweep())
	assert.Equal(t, 1, tr.Len())

	clk.Add(time.Minute)
	assert.Equal(t, []peer.ID{"bob"}, tr.Sweep())
	assert.Nil(t, tr.Sweep())

	fresh, _ := tr.Seen(peer.ID("alice"))
	assert.True(t, fresh, "an expired peer is fresh again when re-announced")
}

func TestTrackerCapacityEvictionCountsAsExpiry(t *testing.T) {
	tr, err := newTracker(2, time.Minute, clock.NewMock())
	require.NoError(t, err)

	tr.Seen(peer.ID("a"))
	tr.Seen(peer.ID("b"))
	fresh, expired := tr.Seen(peer.ID("c"))
	assert.True(t, fresh)
	assert.Equal(t, []peer.ID{"a"}, expired)
}

func TestTrackerRunExpiresOnTick(t *testing.T) {
	clk := clock.NewMock()
	tr, err := newTracker(8, time.Minute, clk)
	require.NoError(t, err)
	tr.Seen(peer.ID("alice"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	expired := make(chan peer.ID, 1)
	started := make(chan struct{})
	go func() {
		close(started)
		tr.run(ctx, 30*time.Second, func(id peer.ID) { expired <- id })
	}()
	<-started

	require.Eventually(t, func() bool {
		clk.Add(30 * time.Second)
		select {
		case id := <-expired:
			return id == peer.ID("alice")
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
