package network

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gabrieldemian/p2p-chat/internal/fabric"
	"github.com/gabrieldemian/p2p-chat/internal/logging"
	"github.com/gabrieldemian/p2p-chat/internal/metrics"
	"github.com/gabrieldemian/p2p-chat/internal/overlay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Package-level worker started by a libp2p dependency's init.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

// start runs the daemon in the background and returns a wait func that
// yields Run's result.
func start(t *testing.T, d *Daemon, ctx context.Context) func() error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	return func() error {
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("daemon did not stop")
			return nil
		}
	}
}

func dialAddress(t *testing.T) string {
	return fmt.Sprintf("/ip4/127.0.0.1/tcp/4001/p2p/%s", randomPeer(t))
}

func TestDialQueuedBeforeQuitRunsFirst(t *testing.T) {
	ov := newMockOverlay(t)
	fab := fabric.New(0)
	addr := dialAddress(t)
	ctx := context.Background()
	require.NoError(t, fab.SendCommand(ctx, fabric.Dial{Address: addr}))
	require.NoError(t, fab.SendCommand(ctx, fabric.Quit{}))

	wait := start(t, New(ov, fab, Options{}), ctx)
	require.NoError(t, wait())

	calls := ov.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "dial "+addr, calls[0])
	assert.Contains(t, calls[1], "add ")
	assert.Equal(t, "close", calls[2])
}

func TestSubscribeIsIdempotent(t *testing.T) {
	ov := newMockOverlay(t)
	fab := fabric.New(0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, fab.SendCommand(ctx, fabric.Subscribe{Topic: "2"}))
	}
	require.NoError(t, fab.SendCommand(ctx, fabric.Quit{}))

	d := New(ov, fab, Options{})
	require.NoError(t, start(t, d, ctx)())

	assert.Equal(t, []string{"subscribe 2", "close"}, ov.Calls())
	assert.Equal(t, []fabric.Topic{"2"}, d.Subscribed())
}

func TestFailedSubscribeCanBeRetried(t *testing.T) {
	ov := newMockOverlay(t)
	attempts := 0
	ov.SubscribeFunc = func(string) error {
		attempts++
		if attempts == 1 {
			return errors.New("join refused")
		}
		return nil
	}
	fab := fabric.New(0)
	ctx := context.Background()
	require.NoError(t, fab.SendCommand(ctx, fabric.Subscribe{Topic: "0"}))
	require.NoError(t, fab.SendCommand(ctx, fabric.Subscribe{Topic: "0"}))
	require.NoError(t, fab.SendCommand(ctx, fabric.Quit{}))

	require.NoError(t, start(t, New(ov, fab, Options{}), ctx)())
	assert.Equal(t, 2, attempts)
}

func TestPublishFailureIsLoggedAndLoopContinues(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logging.UseLogger(zap.New(core))
	t.Cleanup(func() { logging.UseLogger(nil) })

	ov := newMockOverlay(t)
	ov.PublishFunc = func(_ context.Context, _ string, data []byte) error {
		if string(data) == "lost" {
			return overlay.ErrNotSubscribed
		}
		return nil
	}
	fab := fabric.New(0)
	m := metrics.NewDaemon()
	ctx := context.Background()
	require.NoError(t, fab.SendCommand(ctx, fabric.Publish{Topic: "1", Text: "lost"}))
	require.NoError(t, fab.SendCommand(ctx, fabric.Publish{Topic: "1", Text: "kept"}))
	require.NoError(t, fab.SendCommand(ctx, fabric.Quit{}))

	require.NoError(t, start(t, New(ov, fab, Options{Metrics: m}), ctx)())

	assert.Equal(t, []string{"kept"}, ov.Published())
	assert.Equal(t, 1, logs.FilterMessage("publish error").Len())
	failures, err := testutil.GatherAndCount(m.Registry(), "p2p_chat_network_publish_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	assert.Contains(t, logs.FilterMessage("publish error").All()[0].ContextMap(), "topic")
	assert.Empty(t, fab.Events(), "publish errors never reach the UI")
}

func TestReceivedMessagesReachUIInOrder(t *testing.T) {
	ov := newMockOverlay(t)
	fab := fabric.New(0)
	ctx, cancel := context.WithCancel(context.Background())
	wait := start(t, New(ov, fab, Options{}), ctx)

	sender := randomPeer(t)
	const k = 25
	for i := 0; i < k; i++ {
		ov.events <- overlay.MessageReceived{From: sender, Topic: "3", Data: []byte(fmt.Sprintf("m%d", i))}
	}
	short := ShortID(sender.String())
	for i := 0; i < k; i++ {
		select {
		case evt := <-fab.Events():
			assert.Equal(t, fabric.MessageReceived{Topic: "3", Text: fmt.Sprintf("%s: m%d", short, i)}, evt)
		case <-time.After(time.Second):
			t.Fatalf("message %d not delivered", i)
		}
	}

	cancel()
	require.NoError(t, wait())
	assert.Contains(t, ov.Calls(), "close")
}

func TestDiscoveryAdmitsAndExpiryRemoves(t *testing.T) {
	ov := newMockOverlay(t)
	fab := fabric.New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wait := start(t, New(ov, fab, Options{}), ctx)

	p := randomPeer(t)
	ov.events <- overlay.PeerDiscovered{Peer: overlay.PeerHandle{ID: p}}
	require.Eventually(t, func() bool { return ov.Explicit(p) }, time.Second, 5*time.Millisecond)

	ov.events <- overlay.PeerExpired{ID: p}
	require.Eventually(t, func() bool { return !ov.Explicit(p) }, time.Second, 5*time.Millisecond)

	assert.Empty(t, fab.Events(), "discovery is never forwarded to the UI")
	require.NoError(t, fab.SendCommand(ctx, fabric.Quit{}))
	require.NoError(t, wait())
}

func TestExpiryOnlyDropsDiscoveredPeers(t *testing.T) {
	ov := newMockOverlay(t)
	fab := fabric.New(0)
	reg := metrics.NewDaemon()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := New(ov, fab, Options{Metrics: reg})
	wait := start(t, d, ctx)

	addr := dialAddress(t)
	dialed, err := peer.AddrInfoFromString(addr)
	require.NoError(t, err)
	stranger := randomPeer(t)

	require.NoError(t, fab.SendCommand(ctx, fabric.Dial{Address: addr}))
	require.Eventually(t, func() bool { return ov.Explicit(dialed.ID) }, time.Second, 5*time.Millisecond)

	ov.events <- overlay.PeerDiscovered{Peer: overlay.PeerHandle{ID: dialed.ID}}
	ov.events <- overlay.PeerExpired{ID: dialed.ID}
	ov.events <- overlay.PeerExpired{ID: stranger}
	// Overlay events are handled in order, so this one marks the end.
	marker := randomPeer(t)
	ov.events <- overlay.PeerDiscovered{Peer: overlay.PeerHandle{ID: marker}}
	require.Eventually(t, func() bool { return ov.Explicit(marker) }, time.Second, 5*time.Millisecond)
	require.NoError(t, fab.SendCommand(ctx, fabric.Quit{}))
	require.NoError(t, wait())

	assert.True(t, ov.Explicit(dialed.ID), "a dialed peer keeps its admission")
	assert.NotContains(t, ov.Calls(), "remove "+stranger.String())
	assert.NotContains(t, ov.Calls(), "remove "+dialed.ID.String())
	require.NoError(t, testutil.GatherAndCompare(reg.Registry(), strings.NewReader(`
# HELP p2p_chat_peers_expired_total Discovered peers removed after their discovery TTL.
# TYPE p2p_chat_peers_expired_total counter
p2p_chat_peers_expired_total 0
`), "p2p_chat_peers_expired_total"))
}

func TestFirstBindAdmitsSelfAndDialsBootPeer(t *testing.T) {
	ov := newMockOverlay(t)
	fab := fabric.New(0)
	boot := dialAddress(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wait := start(t, New(ov, fab, Options{BootPeer: boot}), ctx)

	ov.events <- overlay.ListenAddrBound{Addr: ma.StringCast("/ip4/127.0.0.1/tcp/4001")}
	ov.events <- overlay.ListenAddrBound{Addr: ma.StringCast("/ip4/10.0.0.2/tcp/4001")}

	require.Eventually(t, func() bool {
		dials := 0
		for _, call := range ov.Calls() {
			if call == "dial "+boot {
				dials++
			}
		}
		return dials == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, ov.Explicit(ov.self))

	require.NoError(t, fab.SendCommand(ctx, fabric.Quit{}))
	require.NoError(t, wait())

	adds := 0
	for _, call := range ov.Calls() {
		if call == "add "+ov.self.String() {
			adds++
		}
	}
	assert.Equal(t, 1, adds, "self is admitted on the first bind only")
}

func TestInvalidDialAddressIsIgnored(t *testing.T) {
	ov := newMockOverlay(t)
	fab := fabric.New(0)
	ctx := context.Background()
	require.NoError(t, fab.SendCommand(ctx, fabric.Dial{Address: "not a multiaddr"}))
	require.NoError(t, fab.SendCommand(ctx, fabric.Dial{Address: "/ip4/127.0.0.1/tcp/4001"}))
	require.NoError(t, fab.SendCommand(ctx, fabric.Quit{}))

	require.NoError(t, start(t, New(ov, fab, Options{}), ctx)())
	assert.Equal(t, []string{"close"}, ov.Calls())
}

func TestOverlayStopSendsQuitToUI(t *testing.T) {
	ov := newMockOverlay(t)
	fab := fabric.New(0)
	wait := start(t, New(ov, fab, Options{}), context.Background())

	ov.shutdown()
	require.NoError(t, wait())

	evt, ok := fab.TryEvent()
	require.True(t, ok)
	assert.Equal(t, fabric.Quit{}, evt)
}

func TestShortIDAndFormat(t *testing.T) {
	assert.Equal(t, "abc", ShortID("abc"))
	assert.Equal(t, "3456789", ShortID("0123456789"))
	assert.Equal(t, "3456789: hi", FormatMessage("0123456789", []byte("hi")))
	assert.Equal(t, "abc: a�b", FormatMessage("abc", []byte{'a', 0xff, 'b'}))
}
