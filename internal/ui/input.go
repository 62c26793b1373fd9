package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gabrieldemian/p2p-chat/internal/fabric"
	"github.com/gabrieldemian/p2p-chat/internal/logging/events"
	"github.com/gabrieldemian/p2p-chat/internal/ui/page"
)

func (m *Model) handleNormalKey(room *page.ChatRoom, key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "i":
		room.EnterInsert()
		events.UI.Mode(string(room.Name), room.Mode.String())
	case "q", "esc":
		m.leaveRoom()
	}
	return nil
}

func (m *Model) handleInsertKey(room *page.ChatRoom, key tea.KeyMsg) tea.Cmd {
	switch key.Type {
	case tea.KeyEsc:
		room.EnterNormal()
		events.UI.Mode(string(room.Name), room.Mode.String())
	case tea.KeyEnter:
		return m.sendDraft(room)
	case tea.KeyBackspace:
		if room.Backspace() {
			events.Draft.Backspace(string(room.Name), room.DraftText())
		}
	case tea.KeySpace:
		room.Type(' ')
		events.Draft.Append(string(room.Name), room.DraftText())
	case tea.KeyRunes:
		room.Type(key.Runes...)
		events.Draft.Append(string(room.Name), room.DraftText())
	}
	return nil
}

// sendDraft publishes the draft. It is added to the transcript only once the
// daemon's channel has accepted it.
func (m *Model) sendDraft(room *page.ChatRoom) tea.Cmd {
	text := room.DraftText()
	if err := m.send(fabric.Publish{Topic: room.Name, Text: text}); err != nil {
		return m.stop()
	}
	room.Sent(text)
	return nil
}
