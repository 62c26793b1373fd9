package network

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/gabrieldemian/p2p-chat/internal/fabric"
	"github.com/gabrieldemian/p2p-chat/internal/logging/events"
	"github.com/gabrieldemian/p2p-chat/internal/overlay"
)

// shortIDLength is how many trailing characters of a peer ID name the
// sender in the transcript.
const shortIDLength = 7

var errMissingPeerID = errors.New("address must end in /p2p/<peer id>")

// handleOverlayEvent translates one overlay event. It only fails when a
// message could not be handed to the UI because ctx ended.
func (d *Daemon) handleOverlayEvent(ctx context.Context, evt overlay.Event) error {
	switch e := evt.(type) {
	case overlay.MessageReceived:
		from := e.From.String()
		events.Network.Received(e.Topic, from, len(e.Data))
		d.opts.Metrics.RecordReceived()
		return d.fabric.SendEvent(ctx, fabric.MessageReceived{
			Topic: fabric.Topic(e.Topic),
			Text:  FormatMessage(from, e.Data),
		})
	case overlay.PeerDiscovered:
		d.admit(e.Peer, reasonDiscovery)
	case overlay.PeerExpired:
		d.expire(e.ID)
	case overlay.ListenAddrBound:
		d.bind(e.Addr)
	case overlay.PeerConnected:
		events.Network.Connected(e.ID.String())
	default:
		kind := fmt.Sprintf("%T", evt)
		d.opts.Metrics.RecordDropped(kind)
		events.Network.Dropped(kind)
	}
	return nil
}

// bind logs the dialable address. The first bind also admits the local node
// and schedules the boot peer dial.
func (d *Daemon) bind(addr ma.Multiaddr) {
	self := d.overlay.ID()
	full := addr
	if suffix, err := ma.NewMultiaddr("/p2p/" + self.String()); err == nil {
		full = addr.Encapsulate(suffix)
	}
	events.Network.Listening(full.String())

	if d.bound {
		return
	}
	d.bound = true
	d.admit(overlay.PeerHandle{ID: self, Addrs: []ma.Multiaddr{addr}}, "self")
	if d.opts.BootPeer != "" {
		d.enqueue(fabric.Dial{Address: d.opts.BootPeer})
	}
}

// ShortID returns the last seven characters of id, or id itself when it is
// shorter.
func ShortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[len(id)-shortIDLength:]
}

// FormatMessage renders a received payload as a transcript line. Invalid
// UTF-8 sequences are replaced with U+FFFD.
func FormatMessage(from string, data []byte) string {
	return ShortID(from) + ": " + strings.ToValidUTF8(string(data), "\uFFFD")
}

func parseDialAddress(address string) (ma.Multiaddr, error) {
	addr, err := ma.NewMultiaddr(strings.TrimSpace(address))
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", address, err)
	}
	if _, err := addr.ValueForProtocol(ma.P_P2P); err != nil {
		return nil, fmt.Errorf("parse %q: %w", address, errMissingPeerID)
	}
	return addr, nil
}

// stripPeer returns the transport part of a /p2p address.
func stripPeer(addr ma.Multiaddr) []ma.Multiaddr {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return nil
	}
	return info.Addrs
}
