package events

import (
	"go.uber.org/zap"

	"github.com/gabrieldemian/p2p-chat/internal/logging"
)

type NetworkTracer struct{}

var Network = NetworkTracer{}

func (NetworkTracer) Listening(addr string) {
	logging.Info("local node is listening", zap.String("address", addr))
}

func (NetworkTracer) Subscribed(topic string) {
	logging.Info("subscribed to topic", zap.String("topic", topic))
}

func (NetworkTracer) AlreadySubscribed(topic string) {
	logging.Trace("network.subscribe.noop", map[string]interface{}{"topic": topic})
}

func (NetworkTracer) SubscribeFailed(topic string, err error) {
	logging.Warn("subscribe failed", zap.String("topic", topic), zap.Error(err))
}

func (NetworkTracer) Published(topic string, size int) {
	logging.Trace("network.publish", map[string]interface{}{"topic": topic, "bytes": size})
}

func (NetworkTracer) PublishFailed(topic string, err error) {
	logging.Warn("publish error", zap.String("topic", topic), zap.Error(err))
}

func (NetworkTracer) Dialing(addr string) {
	logging.Info("dialing", zap.String("address", addr))
}

func (NetworkTracer) DialFailed(addr string, err error) {
	logging.Warn("dial failed", zap.String("address", addr), zap.Error(err))
}

func (NetworkTracer) Admitted(peerID, reason string) {
	logging.Trace("network.peer.admit", map[string]interface{}{"peer": peerID, "reason": reason})
}

func (NetworkTracer) Expired(peerID string) {
	logging.Trace("network.peer.expire", map[string]interface{}{"peer": peerID})
}

func (NetworkTracer) ExpiryIgnored(peerID string) {
	logging.Trace("network.peer.expire.ignored", map[string]interface{}{"peer": peerID})
}

func (NetworkTracer) Received(topic, from string, size int) {
	logging.Trace("network.message", map[string]interface{}{"topic": topic, "from": from, "bytes": size})
}

func (NetworkTracer) Dropped(kind string) {
	logging.Warn("unexpected overlay event dropped", zap.String("type", kind))
}

func (NetworkTracer) Quit(origin string) {
	logging.Info("network daemon stopping", zap.String("origin", origin))
}

func (NetworkTracer) CloseFailed(err error) {
	logging.Warn("releasing overlay failed", zap.Error(err))
}

func (NetworkTracer) Connected(peerID string) {
	logging.Info("connection established", zap.String("peer", peerID))
}
