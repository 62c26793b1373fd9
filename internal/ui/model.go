package ui

import (
	"context"
	"reflect"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gabrieldemian/p2p-chat/internal/fabric"
	"github.com/gabrieldemian/p2p-chat/internal/logging/events"
	"github.com/gabrieldemian/p2p-chat/internal/theme"
	"github.com/gabrieldemian/p2p-chat/internal/ui/page"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

var styles = theme.Default()

type msgHandler func(tea.Msg) tea.Cmd

// Options configures a Model.
type Options struct {
	// Tick is how often queued network events are applied. Zero disables
	// the timer; tests drive ticks through Harness.Tick instead.
	Tick time.Duration
	// Room preselects the best matching row of the topic list.
	Room string
	// Context bounds command sends. Defaults to context.Background.
	Context context.Context
}

// Model implements the Bubble Tea model for the chat client.
type Model struct {
	page   page.Page
	fabric *fabric.Fabric
	ctx    context.Context
	tick   time.Duration
	room   string

	width    int
	height   int
	cursor   cursor.Model
	messages viewport.Model
	quitting bool

	handlers map[reflect.Type]msgHandler
}

// NewModel starts on the topic list.
func NewModel(fab *fabric.Fabric, opts Options) *Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	m := &Model{
		fabric:   fab,
		ctx:      ctx,
		tick:     opts.Tick,
		room:     opts.Room,
		width:    defaultWidth,
		height:   defaultHeight,
		messages: viewport.New(defaultWidth, defaultHeight),
	}
	m.page = m.newTopicList()

	c := cursor.New()
	if styles.Cursor != nil {
		c.Style = *styles.Cursor
	}
	c.SetChar(" ")
	_ = c.SetMode(cursor.CursorStatic)
	c.Focus()
	m.cursor = c

	m.registerHandlers()
	return m
}

// Page returns the current page.
func (m *Model) Page() page.Page {
	return m.page
}

// Init is part of the tea.Model interface.
func (m *Model) Init() tea.Cmd {
	return m.scheduleTick()
}

// Update responds to Bubble Tea messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}
	if handler := m.handlerFor(msg); handler != nil {
		return m, handler(msg)
	}
	return m, nil
}

func (m *Model) registerHandlers() {
	m.handlers = map[reflect.Type]msgHandler{
		reflect.TypeOf(tea.KeyMsg{}):        m.handleKeyMsg,
		reflect.TypeOf(tea.WindowSizeMsg{}): m.handleWindowSizeMsg,
		reflect.TypeOf(tickMsg{}):           m.handleTickMsg,
	}
}

func (m *Model) handlerFor(msg tea.Msg) msgHandler {
	if msg == nil || m.handlers == nil {
		return nil
	}
	t := reflect.TypeOf(msg)
	if handler, ok := m.handlers[t]; ok {
		return handler
	}
	if t.Kind() == reflect.Ptr {
		if handler, ok := m.handlers[t.Elem()]; ok {
			return handler
		}
	}
	return nil
}

func (m *Model) handleWindowSizeMsg(msg tea.Msg) tea.Cmd {
	size, ok := msg.(tea.WindowSizeMsg)
	if !ok {
		return nil
	}
	if size.Width > 0 {
		m.width = size.Width
	}
	if size.Height > 0 {
		m.height = size.Height
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	if key.Type == tea.KeyCtrlC {
		return m.quit()
	}
	switch p := m.page.(type) {
	case *page.TopicList:
		return m.handleTopicListKey(p, key)
	case *page.ChatRoom:
		if p.Mode == page.Insert {
			return m.handleInsertKey(p, key)
		}
		return m.handleNormalKey(p, key)
	}
	return nil
}

// setPage replaces the current page.
func (m *Model) setPage(next page.Page) {
	events.UI.PageChange(m.page.Kind(), next.Kind())
	m.page = next
}

func (m *Model) newTopicList() *page.TopicList {
	list := page.NewTopicList()
	if m.room != "" {
		list.Select(m.room)
	}
	return list
}
