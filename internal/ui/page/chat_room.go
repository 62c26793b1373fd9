package page

import (
	"github.com/gabrieldemian/p2p-chat/internal/fabric"
)

// ChatRoom is an open room. Messages only ever grow while the room is open;
// leaving the room discards it.
type ChatRoom struct {
	Name     fabric.Topic
	Title    string
	Messages []string
	Draft    []rune
	Mode     InputMode
}

// NewChatRoom returns an empty room in Normal mode.
func NewChatRoom(room Room) *ChatRoom {
	return &ChatRoom{Name: room.Topic, Title: room.Name}
}

func (r *ChatRoom) EnterInsert() { r.Mode = Insert }
func (r *ChatRoom) EnterNormal() { r.Mode = Normal }

// Type appends runes to the draft.
func (r *ChatRoom) Type(runes ...rune) {
	r.Draft = append(r.Draft, runes...)
}

// Backspace drops the last rune of the draft. It reports whether anything
// was removed.
func (r *ChatRoom) Backspace() bool {
	if len(r.Draft) == 0 {
		return false
	}
	r.Draft = r.Draft[:len(r.Draft)-1]
	return true
}

// DraftText returns the draft as a string.
func (r *ChatRoom) DraftText() string {
	return string(r.Draft)
}

// Sent records text as our own message and clears the draft. Called once the
// publish command has been accepted.
func (r *ChatRoom) Sent(text string) {
	r.Messages = append(r.Messages, text)
	r.Draft = nil
}

// Receive appends a message from a peer if it belongs to this room.
func (r *ChatRoom) Receive(topic fabric.Topic, text string) bool {
	if topic != r.Name {
		return false
	}
	r.Messages = append(r.Messages, text)
	return true
}
