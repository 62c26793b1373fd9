package events

import "github.com/gabrieldemian/p2p-chat/internal/logging"

type FabricTracer struct{}

var Fabric = FabricTracer{}

func (FabricTracer) Command(kind string, queued int) {
	logging.Trace("fabric.command", map[string]interface{}{"kind": kind, "queued": queued})
}

func (FabricTracer) Event(kind string, queued int) {
	logging.Trace("fabric.event", map[string]interface{}{"kind": kind, "queued": queued})
}

func (FabricTracer) Drain(count int) {
	if count == 0 {
		return
	}
	logging.Trace("fabric.drain", map[string]interface{}{"count": count})
}
