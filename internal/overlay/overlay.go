// Package overlay wraps the peer-to-peer stack behind the small surface the
// network daemon needs: topic subscription and publishing, explicit peer
// admission, dialing, and a single stream of inbound events.
package overlay

import (
	"context"
	"errors"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// ErrNotSubscribed is returned by Publish for a topic that was never joined.
var ErrNotSubscribed = errors.New("overlay: topic not subscribed")

// Overlay is the capability owned by the network daemon. Implementations
// emit Event values on Events until Close is called.
type Overlay interface {
	ID() peer.ID
	Subscribe(topic string) error
	Publish(ctx context.Context, topic string, data []byte) error
	AddExplicitPeer(id peer.ID)
	RemoveExplicitPeer(id peer.ID)
	// Dial starts connecting to addr, which must end in /p2p/<id>, and
	// returns the remote peer without waiting for the connection.
	Dial(ctx context.Context, addr ma.Multiaddr) (peer.ID, error)
	Events() <-chan Event
	Close() error
}

// PeerHandle is a peer plus the addresses needed to reach it.
type PeerHandle struct {
	ID    peer.ID
	Addrs []ma.Multiaddr
}

// Event is anything surfaced by the overlay.
type Event interface {
	overlayEvent()
}

// MessageReceived is one gossip message. From is the propagation source.
type MessageReceived struct {
	From  peer.ID
	Topic string
	Data  []byte
}

// PeerDiscovered reports a peer found on the local network.
type PeerDiscovered struct {
	Peer PeerHandle
}

// PeerExpired reports that a discovered peer has not been seen for the
// discovery TTL.
type PeerExpired struct {
	ID peer.ID
}

// ListenAddrBound reports a new local listening address.
type ListenAddrBound struct {
	Addr ma.Multiaddr
}

// PeerConnected reports an established connection.
type PeerConnected struct {
	ID peer.ID
}

func (MessageReceived) overlayEvent() {}
func (PeerDiscovered) overlayEvent()  {}
func (PeerExpired) overlayEvent()     {}
func (ListenAddrBound) overlayEvent() {}
func (PeerConnected) overlayEvent()   {}
