package network

import (
	"context"
	"sync"
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/gabrieldemian/p2p-chat/internal/overlay"
)

// mockOverlay is a hand-written overlay.Overlay. Func fields override the
// default behaviour; every call is recorded in order.
type mockOverlay struct {
	self   peer.ID
	events chan overlay.Event

	SubscribeFunc func(topic string) error
	PublishFunc   func(ctx context.Context, topic string, data []byte) error
	DialFunc      func(ctx context.Context, addr ma.Multiaddr) (peer.ID, error)
	CloseFunc     func() error

	mu        sync.Mutex
	calls     []string
	published []string
	explicit  map[peer.ID]bool
	closeOnce sync.Once
}

func newMockOverlay(t *testing.T) *mockOverlay {
	t.Helper()
	return &mockOverlay{
		self:     randomPeer(t),
		events:   make(chan overlay.Event, 64),
		explicit: make(map[peer.ID]bool),
	}
}

func randomPeer(t *testing.T) peer.ID {
	t.Helper()
	_, pub, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		t.Fatalf("peer id: %v", err)
	}
	return id
}

func (m *mockOverlay) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockOverlay) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockOverlay) Published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.published...)
}

func (m *mockOverlay) Explicit(id peer.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.explicit[id]
}

func (m *mockOverlay) ID() peer.ID { return m.self }

func (m *mockOverlay) Subscribe(topic string) error {
	m.record("subscribe " + topic)
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(topic)
	}
	return nil
}

func (m *mockOverlay) Publish(ctx context.Context, topic string, data []byte) error {
	m.record("publish " + topic)
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, topic, data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.published = append(m.published, string(data))
	m.mu.Unlock()
	return nil
}

func (m *mockOverlay) AddExplicitPeer(id peer.ID) {
	m.record("add " + id.String())
	m.mu.Lock()
	m.explicit[id] = true
	m.mu.Unlock()
}

func (m *mockOverlay) RemoveExplicitPeer(id peer.ID) {
	m.record("remove " + id.String())
	m.mu.Lock()
	delete(m.explicit, id)
	m.mu.Unlock()
}

func (m *mockOverlay) Dial(ctx context.Context, addr ma.Multiaddr) (peer.ID, error) {
	m.record("dial " + addr.String())
	if m.DialFunc != nil {
		return m.DialFunc(ctx, addr)
	}
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (m *mockOverlay) Events() <-chan overlay.Event { return m.events }

func (m *mockOverlay) Close() error {
	m.record("close")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// shutdown closes the event stream the way a failed overlay would.
func (m *mockOverlay) shutdown() {
	m.closeOnce.Do(func() { close(m.events) })
}
