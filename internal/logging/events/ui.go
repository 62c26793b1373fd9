package events

import "github.com/gabrieldemian/p2p-chat/internal/logging"

type UITracer struct{}

type DraftTracer struct{}

var (
	UI    = UITracer{}
	Draft = DraftTracer{}
)

func (UITracer) PageChange(from, to string) {
	logging.Trace("ui.page", map[string]interface{}{"from": from, "to": to})
}

func (UITracer) Cursor(selected int) {
	logging.Trace("ui.cursor", map[string]interface{}{"selected": selected})
}

func (UITracer) Mode(room, mode string) {
	logging.Trace("ui.mode", map[string]interface{}{"room": room, "mode": mode})
}

func (UITracer) Sent(kind string) {
	logging.Trace("ui.command.sent", map[string]interface{}{"kind": kind})
}

func (UITracer) SendFailed(kind string, err error) {
	if err == nil {
		return
	}
	logging.Trace("ui.command.failed", map[string]interface{}{"kind": kind, "error": err.Error()})
}

func (UITracer) Discarded(kind, topic, page string) {
	logging.Trace("ui.event.discarded", map[string]interface{}{"kind": kind, "topic": topic, "page": page})
}

func (UITracer) Applied(topic string, transcript int) {
	logging.Trace("ui.event.applied", map[string]interface{}{"topic": topic, "transcript": transcript})
}

func (DraftTracer) Append(room, draft string) {
	logging.Trace("draft.append", map[string]interface{}{"room": room, "draft": draft})
}

func (DraftTracer) Backspace(room, draft string) {
	logging.Trace("draft.backspace", map[string]interface{}{"room": room, "draft": draft})
}
