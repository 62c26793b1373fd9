package events

import "github.com/gabrieldemian/p2p-chat/internal/logging"

type AppTracer struct{}

var App = AppTracer{}

func (AppTracer) Start(payload map[string]interface{}) {
	logging.Trace("app.start", payload)
}

func (AppTracer) ActorExit(actor string, err error) {
	payload := map[string]interface{}{"actor": actor}
	if err != nil {
		payload["error"] = err.Error()
	}
	logging.Trace("app.actor.exit", payload)
}

func (AppTracer) Signal(name string) {
	logging.Trace("app.signal", map[string]interface{}{"signal": name})
}
