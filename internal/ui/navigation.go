package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gabrieldemian/p2p-chat/internal/fabric"
	"github.com/gabrieldemian/p2p-chat/internal/logging/events"
	"github.com/gabrieldemian/p2p-chat/internal/ui/page"
)

func (m *Model) handleTopicListKey(list *page.TopicList, key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "q", "esc":
		return m.quit()
	case "down", "j":
		list.Next()
		events.UI.Cursor(list.Selected)
	case "up", "k":
		list.Prev()
		events.UI.Cursor(list.Selected)
	case "enter":
		return m.joinSelected(list)
	}
	return nil
}

// joinSelected subscribes to the selected room and opens it empty.
func (m *Model) joinSelected(list *page.TopicList) tea.Cmd {
	room, ok := list.Open()
	if !ok {
		return nil
	}
	if err := m.send(fabric.Subscribe{Topic: room.Name}); err != nil {
		return m.stop()
	}
	m.setPage(room)
	return nil
}

// leaveRoom drops the room and its transcript.
func (m *Model) leaveRoom() {
	m.setPage(m.newTopicList())
}
