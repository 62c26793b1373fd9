// Package network runs the daemon that owns the peer-to-peer overlay. It is
// driven by commands from the UI and by overlay events, and reports received
// chat messages back to the UI through the fabric.
package network

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/gabrieldemian/p2p-chat/internal/fabric"
	"github.com/gabrieldemian/p2p-chat/internal/logging/events"
	"github.com/gabrieldemian/p2p-chat/internal/metrics"
	"github.com/gabrieldemian/p2p-chat/internal/overlay"
)

// Options configures a Daemon.
type Options struct {
	// BootPeer is dialed once the first listening address is bound.
	BootPeer string
	Metrics  *metrics.Daemon
}

// Daemon is the single owner of an Overlay. All of its state is touched only
// from the Run goroutine.
type Daemon struct {
	overlay overlay.Overlay
	fabric  *fabric.Fabric
	opts    Options

	subscribed map[fabric.Topic]struct{}
	admitted   map[peer.ID]admission
	followUps  []fabric.Command
	bound      bool
}

// admission is an explicit peer. Only peers admitted purely through
// discovery are dropped again when discovery expires them.
type admission struct {
	handle     overlay.PeerHandle
	discovered bool
}

// reasonDiscovery is the admission reason of mDNS announcements.
const reasonDiscovery = "mdns"

// ready is always receivable; it stands in for the follow-up queue in the
// select while the queue is non-empty.
var ready = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func New(ov overlay.Overlay, fab *fabric.Fabric, opts Options) *Daemon {
	return &Daemon{
		overlay:    ov,
		fabric:     fab,
		opts:       opts,
		subscribed: make(map[fabric.Topic]struct{}),
		admitted:   make(map[peer.ID]admission),
	}
}

// Run processes commands and overlay events until a Quit command arrives,
// the overlay stops, or ctx ends. The overlay is closed before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	overlayEvents := d.overlay.Events()
	for {
		var followUp <-chan struct{}
		if len(d.followUps) > 0 {
			followUp = ready
		}

		select {
		case <-ctx.Done():
			d.stop("context")
			return nil
		case cmd := <-d.fabric.Commands():
			if d.handleCommand(ctx, cmd) {
				return nil
			}
		case <-followUp:
			cmd := d.followUps[0]
			d.followUps = d.followUps[1:]
			if d.handleCommand(ctx, cmd) {
				return nil
			}
		case evt, ok := <-overlayEvents:
			if !ok {
				d.stop("network")
				// Best effort: if the UI is already gone ctx will be done.
				_ = d.fabric.SendEvent(ctx, fabric.Quit{})
				return nil
			}
			if err := d.handleOverlayEvent(ctx, evt); err != nil {
				d.stop("context")
				return nil
			}
		}
	}
}

// Subscribed reports the topics joined so far.
func (d *Daemon) Subscribed() []fabric.Topic {
	out := make([]fabric.Topic, 0, len(d.subscribed))
	for topic := range d.subscribed {
		out = append(out, topic)
	}
	return out
}

// enqueue schedules cmd to run on a later loop iteration.
func (d *Daemon) enqueue(cmd fabric.Command) {
	d.followUps = append(d.followUps, cmd)
}

// handleCommand reports whether the loop must end.
func (d *Daemon) handleCommand(ctx context.Context, cmd fabric.Command) bool {
	d.opts.Metrics.RecordCommand(cmd.Kind())
	switch c := cmd.(type) {
	case fabric.Publish:
		d.publish(ctx, c)
	case fabric.Subscribe:
		d.subscribe(c.Topic)
	case fabric.Dial:
		d.dial(ctx, c.Address)
	case fabric.Quit:
		d.stop("ui")
		return true
	}
	return false
}

func (d *Daemon) publish(ctx context.Context, c fabric.Publish) {
	data := []byte(c.Text)
	err := d.overlay.Publish(ctx, string(c.Topic), data)
	d.opts.Metrics.RecordPublish(err)
	if err != nil {
		events.Network.PublishFailed(string(c.Topic), err)
		return
	}
	events.Network.Published(string(c.Topic), len(data))
}

func (d *Daemon) subscribe(topic fabric.Topic) {
	if _, ok := d.subscribed[topic]; ok {
		events.Network.AlreadySubscribed(string(topic))
		return
	}
	if err := d.overlay.Subscribe(string(topic)); err != nil {
		events.Network.SubscribeFailed(string(topic), err)
		return
	}
	d.subscribed[topic] = struct{}{}
	events.Network.Subscribed(string(topic))
}

func (d *Daemon) dial(ctx context.Context, address string) {
	addr, err := parseDialAddress(address)
	if err != nil {
		events.Network.DialFailed(address, err)
		return
	}
	events.Network.Dialing(address)
	id, err := d.overlay.Dial(ctx, addr)
	if err != nil {
		events.Network.DialFailed(address, err)
		return
	}
	d.admit(overlay.PeerHandle{ID: id, Addrs: stripPeer(addr)}, "dial")
}

func (d *Daemon) admit(handle overlay.PeerHandle, reason string) {
	discovered := reason == reasonDiscovery
	if prev, ok := d.admitted[handle.ID]; ok {
		discovered = discovered && prev.discovered
	}
	d.admitted[handle.ID] = admission{handle: handle, discovered: discovered}
	d.overlay.AddExplicitPeer(handle.ID)
	d.opts.Metrics.RecordAdmitted(reason)
	events.Network.Admitted(handle.ID.String(), reason)
}

func (d *Daemon) expire(id peer.ID) {
	adm, ok := d.admitted[id]
	if !ok {
		return
	}
	if !adm.discovered {
		events.Network.ExpiryIgnored(id.String())
		return
	}
	delete(d.admitted, id)
	d.overlay.RemoveExplicitPeer(id)
	d.opts.Metrics.RecordExpired()
	events.Network.Expired(id.String())
}

// Admitted reports whether id is currently an explicit gossip peer.
func (d *Daemon) Admitted(id peer.ID) bool {
	_, ok := d.admitted[id]
	return ok
}

func (d *Daemon) stop(origin string) {
	events.Network.Quit(origin)
	if err := d.overlay.Close(); err != nil {
		events.Network.CloseFailed(err)
	}
}
