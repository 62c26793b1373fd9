package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gabrieldemian/p2p-chat/internal/fabric"
	"github.com/gabrieldemian/p2p-chat/internal/logging/events"
	"github.com/gabrieldemian/p2p-chat/internal/ui/page"
)

type tickMsg struct{}

func (m *Model) scheduleTick() tea.Cmd {
	if m.tick <= 0 {
		return nil
	}
	return tea.Tick(m.tick, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *Model) handleTickMsg(tea.Msg) tea.Cmd {
	if m.drainEvents() {
		return m.stop()
	}
	return m.scheduleTick()
}

// drainEvents applies the events queued so far and reports whether the
// daemon asked the UI to quit.
func (m *Model) drainEvents() bool {
	quit := false
	m.fabric.DrainEvents(func(evt fabric.Event) bool {
		if m.applyEvent(evt) {
			quit = true
			return false
		}
		return true
	})
	return quit
}

func (m *Model) applyEvent(evt fabric.Event) (quit bool) {
	switch e := evt.(type) {
	case fabric.Quit:
		return true
	case fabric.MessageReceived:
		switch p := m.page.(type) {
		case *page.ChatRoom:
			if p.Receive(e.Topic, e.Text) {
				events.UI.Applied(string(e.Topic), len(p.Messages))
				return false
			}
			events.UI.Discarded(e.Kind(), string(e.Topic), p.Kind())
		case *page.TopicList:
			events.UI.Discarded(e.Kind(), string(e.Topic), p.Kind())
		}
	}
	return false
}
