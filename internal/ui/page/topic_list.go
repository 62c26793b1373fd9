package page

import (
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/gabrieldemian/p2p-chat/internal/fabric"
)

// Room is one row of the topic list.
type Room struct {
	Topic  fabric.Topic
	Online int
	Name   string
}

var catalog = []struct {
	online int
	name   string
}{
	{5, "Rust async"},
	{3, "How to cook better"},
	{8, "Hiking organization"},
	{2, "Secret meeting to rule to world"},
	{1, "Talk about cats"},
}

// Catalog returns the fixed room list. A room's topic is its row index.
func Catalog() []Room {
	rooms := make([]Room, len(catalog))
	for i, row := range catalog {
		rooms[i] = Room{
			Topic:  fabric.Topic(strconv.Itoa(i)),
			Online: row.online,
			Name:   row.name,
		}
	}
	return rooms
}

// TopicList is the room browser. Selected is always a valid index while
// Rooms is non-empty.
type TopicList struct {
	Rooms    []Room
	Selected int
}

// NewTopicList returns the catalog with the first row selected.
func NewTopicList() *TopicList {
	return &TopicList{Rooms: Catalog()}
}

// Next moves the selection down, wrapping to the first row.
func (l *TopicList) Next() {
	if len(l.Rooms) == 0 {
		return
	}
	l.Selected = (l.Selected + 1) % len(l.Rooms)
}

// Prev moves the selection up, wrapping to the last row.
func (l *TopicList) Prev() {
	n := len(l.Rooms)
	if n == 0 {
		return
	}
	l.Selected = (l.Selected - 1 + n) % n
}

// Current returns the selected room.
func (l *TopicList) Current() (Room, bool) {
	if l.Selected < 0 || l.Selected >= len(l.Rooms) {
		return Room{}, false
	}
	return l.Rooms[l.Selected], true
}

// Open builds a fresh chat room for the selected row.
func (l *TopicList) Open() (*ChatRoom, bool) {
	room, ok := l.Current()
	if !ok {
		return nil, false
	}
	return NewChatRoom(room), true
}

// Select moves the selection to the room best matching query, comparing
// against both topic and name. It reports whether anything matched.
func (l *TopicList) Select(query string) bool {
	idx := FindRoom(l.Rooms, query)
	if idx < 0 {
		return false
	}
	l.Selected = idx
	return true
}

// FindRoom returns the index of the room best matching query, or -1.
func FindRoom(rooms []Room, query string) int {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" || len(rooms) == 0 {
		return -1
	}
	for i, room := range rooms {
		if string(room.Topic) == trimmed || strings.EqualFold(room.Name, trimmed) {
			return i
		}
	}
	names := make([]string, len(rooms))
	for i, room := range rooms {
		names[i] = room.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(trimmed, names)
	if len(ranks) == 0 {
		return -1
	}
	best := ranks[0]
	for _, rank := range ranks[1:] {
		if rank.Distance < best.Distance ||
			(rank.Distance == best.Distance && rank.OriginalIndex < best.OriginalIndex) {
			best = rank
		}
	}
	return best.OriginalIndex
}
