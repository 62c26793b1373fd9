package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/gabrieldemian/p2p-chat/internal/format/table"
	"github.com/gabrieldemian/p2p-chat/internal/ui/page"
)

const (
	appTitle = "p2p-chat"
	ellipsis = "…"

	topicListHelp = "↑/k up · ↓/j down · enter join · q quit"
	normalHelp    = "i write a message · q leave the room"
	insertHelp    = "enter send · esc stop writing"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	switch p := m.page.(type) {
	case *page.TopicList:
		return m.viewTopicList(p)
	case *page.ChatRoom:
		return m.viewChatRoom(p)
	}
	return ""
}

func (m *Model) viewTopicList(list *page.TopicList) string {
	rows := make([][]string, 0, len(list.Rooms)+1)
	rows = append(rows, []string{"Online", "Name"})
	for _, room := range list.Rooms {
		rows = append(rows, []string{strconv.Itoa(room.Online), room.Name})
	}
	formatted := table.Format(rows, []table.Alignment{table.AlignRight, table.AlignLeft})

	lines := make([]string, 0, len(formatted)+3)
	lines = append(lines, render(styles.Title, m.truncate(appTitle)))
	lines = append(lines, render(styles.Header, m.truncate("  "+formatted[0])))
	for i, row := range formatted[1:] {
		text := m.truncate(row)
		if i == list.Selected {
			lines = append(lines, render(styles.SelectedIndicator, "▌ ")+render(styles.SelectedItem, text))
			continue
		}
		lines = append(lines, render(styles.ItemIndicator, "  ")+render(styles.Item, text))
	}
	lines = append(lines, "", render(styles.Help, m.truncate(topicListHelp)))
	return strings.Join(lines, "\n")
}

func (m *Model) viewChatRoom(room *page.ChatRoom) string {
	badge := render(styles.NormalBadge, "NORMAL")
	help := normalHelp
	input := styles.Input
	if room.Mode == page.Insert {
		badge = render(styles.InsertBadge, "INSERT")
		help = insertHelp
		input = styles.InputActive
	}

	title := fmt.Sprintf("#%s %s", room.Name, room.Title)
	title = truncateTo(title, m.width-lipgloss.Width(badge)-1)
	header := lipgloss.JoinHorizontal(lipgloss.Top, render(styles.Title, title), " ", badge)

	box := m.renderInput(room, *input)
	// header, help line and the input box surround the transcript
	transcriptHeight := m.height - 2 - lipgloss.Height(box)
	if transcriptHeight < 1 {
		transcriptHeight = 1
	}
	m.messages.Width = m.width
	m.messages.Height = transcriptHeight
	m.messages.SetContent(m.transcript(room))
	m.messages.GotoBottom()

	return strings.Join([]string{
		header,
		render(styles.Help, m.truncate(help)),
		m.messages.View(),
		box,
	}, "\n")
}

func (m *Model) transcript(room *page.ChatRoom) string {
	if len(room.Messages) == 0 {
		return render(styles.Empty, "no messages yet")
	}
	lines := make([]string, len(room.Messages))
	for i, msg := range room.Messages {
		lines[i] = render(styles.Message, m.truncate(msg))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderInput(room *page.ChatRoom, style lipgloss.Style) string {
	// two border cells plus room for the cursor
	width := m.width - 3
	if width < 1 {
		width = 1
	}
	draft := room.DraftText()
	if room.Mode == page.Insert {
		// Keep the tail visible while typing.
		if w := ansi.StringWidth(draft); w > width-1 {
			draft = ansi.TruncateLeft(draft, w-(width-1), "")
		}
		draft += m.cursor.View()
	} else {
		draft = ansi.Truncate(draft, width, ellipsis)
	}
	return style.Width(width + 1).Render(draft)
}

func (m *Model) truncate(text string) string {
	return truncateTo(text, m.width)
}

func truncateTo(text string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(text, width, ellipsis)
}

func render(style *lipgloss.Style, text string) string {
	if style == nil {
		return text
	}
	return style.Render(text)
}
