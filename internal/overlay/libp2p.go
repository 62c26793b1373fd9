package overlay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	libp2p "github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	mdns "github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	connmgr "github.com/libp2p/go-libp2p/p2p/net/connmgr"
	noise "github.com/libp2p/go-libp2p/p2p/security/noise"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gabrieldemian/p2p-chat/internal/logging"
)

const (
	DefaultListenAddress = "/ip4/0.0.0.0/tcp/0"
	DefaultRendezvous    = "p2p-chat"

	explicitTag    = "p2p-chat/explicit"
	connectTimeout = 15 * time.Second
)

// Options configures the libp2p overlay.
type Options struct {
	ListenAddress string
	MDNS          bool
	DHT           bool
	Rendezvous    string
	// DiscoveryTTL is how long a peer found through mDNS stays admitted
	// without a fresh announcement.
	DiscoveryTTL    time.Duration
	MaxTrackedPeers int
	EventBuffer     int
	// DialInterval is the minimum spacing between outgoing connection
	// attempts.
	DialInterval time.Duration
	Clock           clock.Clock
}

func (o Options) withDefaults() Options {
	if o.ListenAddress == "" {
		o.ListenAddress = DefaultListenAddress
	}
	if o.Rendezvous == "" {
		o.Rendezvous = DefaultRendezvous
	}
	if o.DiscoveryTTL <= 0 {
		o.DiscoveryTTL = 2 * time.Minute
	}
	if o.MaxTrackedPeers <= 0 {
		o.MaxTrackedPeers = 256
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
	if o.DialInterval <= 0 {
		o.DialInterval = 100 * time.Millisecond
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}

type joinedTopic struct {
	topic *pubsub.Topic
	sub   *pubsub.Subscription
}

// Libp2p is the Overlay backed by a libp2p host, GossipSub, an optional
// Kademlia DHT and optional mDNS discovery.
type Libp2p struct {
	ctx    context.Context
	cancel context.CancelFunc

	host    host.Host
	pubsub  *pubsub.PubSub
	dht     *dht.IpfsDHT
	mdns    mdns.Service
	bus     event.Subscription
	tracker *tracker
	dials   *throttle

	topics map[string]*joinedTopic
	events chan Event
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// NewLibp2p builds the host and binds the listening address. Failing to bind
// is fatal for the caller; everything after construction is recoverable.
func NewLibp2p(ctx context.Context, opts Options) (*Libp2p, error) {
	opts = opts.withDefaults()
	listen, err := ma.NewMultiaddr(opts.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("listen address %q: %w", opts.ListenAddress, err)
	}

	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	cm, err := connmgr.NewConnManager(16, 64, connmgr.WithGracePeriod(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("connmgr: %w", err)
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrs(listen),
		libp2p.Security(noise.ID, noise.New),
		libp2p.ConnectionManager(cm),
	)
	if err != nil {
		return nil, fmt.Errorf("libp2p host: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	o := &Libp2p{
		ctx:    ctx,
		cancel: cancel,
		host:   h,
		topics: make(map[string]*joinedTopic),
		events: make(chan Event, opts.EventBuffer),
	}
	fail := func(err error) (*Libp2p, error) {
		cancel()
		return nil, multierr.Append(err, o.release())
	}

	o.pubsub, err = pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageSigning(true),
		pubsub.WithStrictSignatureVerification(true),
	)
	if err != nil {
		return fail(fmt.Errorf("gossipsub: %w", err))
	}

	if opts.DHT {
		o.dht, err = dht.New(ctx, h, dht.Mode(dht.ModeAuto))
		if err != nil {
			return fail(fmt.Errorf("dht: %w", err))
		}
	}

	o.bus, err = h.EventBus().Subscribe([]interface{}{
		new(event.EvtLocalAddressesUpdated),
		new(event.EvtPeerConnectednessChanged),
	})
	if err != nil {
		return fail(fmt.Errorf("event bus: %w", err))
	}

	o.dials = newThrottle(opts.Clock, opts.DialInterval)
	o.tracker, err = newTracker(opts.MaxTrackedPeers, opts.DiscoveryTTL, opts.Clock)
	if err != nil {
		return fail(err)
	}

	o.wg.Add(2)
	go o.pumpHostEvents()
	go func() {
		defer o.wg.Done()
		o.tracker.run(ctx, opts.DiscoveryTTL/2, func(id peer.ID) {
			o.emit(PeerExpired{ID: id})
		})
	}()

	if opts.MDNS {
		o.mdns = mdns.NewMdnsService(h, opts.Rendezvous, &discoveryNotifee{o: o})
		if err := o.mdns.Start(); err != nil {
			logging.Warn("mDNS discovery failed to start", zap.Error(err))
			o.mdns = nil
		}
	}
	return o, nil
}

// ID returns the local peer identity.
func (o *Libp2p) ID() peer.ID {
	return o.host.ID()
}

// Events returns the inbound event stream. It is closed by Close.
func (o *Libp2p) Events() <-chan Event {
	return o.events
}

// Subscribe joins topic once; later calls are no-ops.
func (o *Libp2p) Subscribe(topic string) error {
	if _, ok := o.topics[topic]; ok {
		return nil
	}
	t, err := o.pubsub.Join(topic)
	if err != nil {
		return fmt.Errorf("join topic %s: %w", topic, err)
	}
	sub, err := t.Subscribe()
	if err != nil {
		_ = t.Close()
		return fmt.Errorf("subscribe topic %s: %w", topic, err)
	}
	o.topics[topic] = &joinedTopic{topic: t, sub: sub}
	o.wg.Add(1)
	go o.consume(topic, sub)
	return nil
}

// Publish broadcasts data on a joined topic.
func (o *Libp2p) Publish(ctx context.Context, topic string, data []byte) error {
	joined, ok := o.topics[topic]
	if !ok {
		return fmt.Errorf("publish %s: %w", topic, ErrNotSubscribed)
	}
	if err := joined.topic.Publish(ctx, data); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// AddExplicitPeer protects the connection to id from pruning and connects
// to it when addresses are known and no connection exists yet.
func (o *Libp2p) AddExplicitPeer(id peer.ID) {
	o.host.ConnManager().Protect(id, explicitTag)
	if id == o.host.ID() {
		return
	}
	if o.host.Network().Connectedness(id) == network.Connected {
		return
	}
	addrs := o.host.Peerstore().Addrs(id)
	if len(addrs) == 0 {
		return
	}
	o.connect(peer.AddrInfo{ID: id, Addrs: addrs})
}

// RemoveExplicitPeer drops the protection added by AddExplicitPeer. The
// connection itself is left alone.
func (o *Libp2p) RemoveExplicitPeer(id peer.ID) {
	o.host.ConnManager().Unprotect(id, explicitTag)
}

// Dial records the address and connects in the background.
func (o *Libp2p) Dial(_ context.Context, addr ma.Multiaddr) (peer.ID, error) {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}
	if info.ID == o.host.ID() {
		return "", fmt.Errorf("dial %s: refusing to dial self", addr)
	}
	o.host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.PermanentAddrTTL)
	o.connect(*info)
	return info.ID, nil
}

// Close stops every background reader and releases the host. Safe to call
// more than once.
func (o *Libp2p) Close() error {
	o.closeOnce.Do(func() {
		o.cancel()
		o.closeErr = o.release()
		o.wg.Wait()
		close(o.events)
	})
	return o.closeErr
}

func (o *Libp2p) release() error {
	var err error
	for _, joined := range o.topics {
		joined.sub.Cancel()
	}
	if o.mdns != nil {
		err = multierr.Append(err, o.mdns.Close())
	}
	if o.bus != nil {
		err = multierr.Append(err, o.bus.Close())
	}
	if o.dht != nil {
		err = multierr.Append(err, o.dht.Close())
	}
	return multierr.Append(err, o.host.Close())
}

func (o *Libp2p) connect(info peer.AddrInfo) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if o.dials.wait(o.ctx) != nil {
			return
		}
		ctx, cancel := context.WithTimeout(o.ctx, connectTimeout)
		defer cancel()
		if err := o.host.Connect(ctx, info); err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn("connect failed", zap.Stringer("peer", info.ID), zap.Error(err))
		}
	}()
}

// emit blocks while the event buffer is full, which slows gossip readers
// down instead of dropping messages.
func (o *Libp2p) emit(evt Event) {
	select {
	case o.events <- evt:
	case <-o.ctx.Done():
	}
}

func (o *Libp2p) consume(topic string, sub *pubsub.Subscription) {
	defer o.wg.Done()
	self := o.host.ID()
	for {
		msg, err := sub.Next(o.ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, pubsub.ErrSubscriptionCancelled) {
				logging.Warn("topic reader stopped", zap.String("topic", topic), zap.Error(err))
			}
			return
		}
		if msg.GetFrom() == self {
			continue
		}
		o.emit(MessageReceived{From: msg.ReceivedFrom, Topic: topic, Data: msg.Data})
	}
}

func (o *Libp2p) pumpHostEvents() {
	defer o.wg.Done()
	bound := make(map[string]struct{})
	announce := func(addr ma.Multiaddr) {
		key := addr.String()
		if _, ok := bound[key]; ok {
			return
		}
		bound[key] = struct{}{}
		o.emit(ListenAddrBound{Addr: addr})
	}
	for _, addr := range o.host.Addrs() {
		announce(addr)
	}
	for {
		select {
		case <-o.ctx.Done():
			return
		case raw, ok := <-o.bus.Out():
			if !ok {
				return
			}
			switch evt := raw.(type) {
			case event.EvtLocalAddressesUpdated:
				for _, updated := range evt.Current {
					if updated.Action == event.Added {
						announce(updated.Address)
					}
				}
			case event.EvtPeerConnectednessChanged:
				if evt.Connectedness == network.Connected {
					o.emit(PeerConnected{ID: evt.Peer})
				}
			}
		}
	}
}

type discoveryNotifee struct {
	o *Libp2p
}

// HandlePeerFound is called by mDNS for every announcement, including
// repeats, which refresh the peer's discovery TTL.
func (n *discoveryNotifee) HandlePeerFound(info peer.AddrInfo) {
	o := n.o
	if info.ID == o.host.ID() {
		return
	}
	o.host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.AddressTTL)
	fresh, expired := o.tracker.Seen(info.ID)
	for _, id := range expired {
		o.emit(PeerExpired{ID: id})
	}
	if fresh {
		o.emit(PeerDiscovered{Peer: PeerHandle{ID: info.ID, Addrs: info.Addrs}})
	}
}
