package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gabrieldemian/p2p-chat/internal/fabric"
	"github.com/gabrieldemian/p2p-chat/internal/logging/events"
)

// send hands cmd to the network daemon, blocking while its channel is full.
func (m *Model) send(cmd fabric.Command) error {
	if err := m.fabric.SendCommand(m.ctx, cmd); err != nil {
		events.UI.SendFailed(cmd.Kind(), err)
		return err
	}
	events.UI.Sent(cmd.Kind())
	return nil
}

// quit tells the daemon to stop and ends the program. The daemon may already
// be gone, so a failed send is only traced.
func (m *Model) quit() tea.Cmd {
	_ = m.send(fabric.Quit{})
	return m.stop()
}

// stop ends the program without notifying the daemon.
func (m *Model) stop() tea.Cmd {
	m.quitting = true
	return tea.Quit
}
