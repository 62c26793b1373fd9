// Package page holds the UI's screen state. A Page is either the topic list
// or an open chat room; the model replaces one with the other on every
// transition so there is always exactly one current page.
package page

// Page is implemented by *TopicList and *ChatRoom only.
type Page interface {
	page()
	// Kind names the page for traces.
	Kind() string
}

// InputMode selects how keys are interpreted inside a chat room.
type InputMode int

const (
	Normal InputMode = iota
	Insert
)

func (m InputMode) String() string {
	switch m {
	case Insert:
		return "insert"
	default:
		return "normal"
	}
}

func (*TopicList) page() {}
func (*ChatRoom) page()  {}

func (*TopicList) Kind() string { return "topic_list" }
func (*ChatRoom) Kind() string  { return "chat_room" }
