package ui

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gabrieldemian/p2p-chat/internal/fabric"
	"github.com/gabrieldemian/p2p-chat/internal/ui/page"
)

func deliver(t *testing.T, fab *fabric.Fabric, evts ...fabric.Event) {
	t.Helper()
	for _, evt := range evts {
		if err := fab.SendEvent(context.Background(), evt); err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}
}

func TestBackToBackMessagesGrowTranscriptInOrder(t *testing.T) {
	h, fab := newTestHarness(t)
	h.Press(tea.KeyDown)
	room := openRoom(t, h, fab)

	const k = 40
	for i := 0; i < k; i++ {
		deliver(t, fab, fabric.MessageReceived{Topic: "1", Text: fmt.Sprintf("abc1234: %d", i)})
	}
	h.Tick()

	if len(room.Messages) != k {
		t.Fatalf("expected %d messages, got %d", k, len(room.Messages))
	}
	for i, msg := range room.Messages {
		if want := fmt.Sprintf("abc1234: %d", i); msg != want {
			t.Fatalf("message %d: expected %q, got %q", i, want, msg)
		}
	}
}

func TestTickWithNothingQueuedChangesNothing(t *testing.T) {
	h, fab := newTestHarness(t)
	room := openRoom(t, h, fab)
	h.Tick()
	h.Tick()
	if len(room.Messages) != 0 || h.Quit() {
		t.Fatalf("expected idle ticks to be no-ops, got %q", room.Messages)
	}
}

func TestMessagesOnTopicListAreDiscarded(t *testing.T) {
	h, fab := newTestHarness(t)
	deliver(t, fab, fabric.MessageReceived{Topic: "0", Text: "early"})
	h.Tick()
	if len(fab.Events()) != 0 {
		t.Fatal("expected the event to be consumed")
	}

	room := openRoom(t, h, fab)
	h.Tick()
	if len(room.Messages) != 0 {
		t.Fatalf("expected earlier message to stay discarded, got %q", room.Messages)
	}
}

func TestMessagesForOtherTopicsAreDiscarded(t *testing.T) {
	h, fab := newTestHarness(t)
	room := openRoom(t, h, fab)
	deliver(t, fab,
		fabric.MessageReceived{Topic: "3", Text: "elsewhere"},
		fabric.MessageReceived{Topic: "0", Text: "here"},
	)
	h.Tick()
	if len(room.Messages) != 1 || room.Messages[0] != "here" {
		t.Fatalf("expected only the room's message, got %q", room.Messages)
	}
}

func TestOwnAndPeerMessagesInterleave(t *testing.T) {
	h, fab := newTestHarness(t)
	room := openRoom(t, h, fab)
	h.Type("i")
	h.Type("mine")
	h.Press(tea.KeyEnter)
	nextCommand(t, fab)
	deliver(t, fab, fabric.MessageReceived{Topic: room.Name, Text: "1234567: theirs"})
	h.Tick()
	if strings.Join(room.Messages, "|") != "mine|1234567: theirs" {
		t.Fatalf("unexpected transcript %q", room.Messages)
	}
}

func TestQuitEventEndsProgramWithoutEchoingQuit(t *testing.T) {
	h, fab := newTestHarness(t)
	deliver(t, fab, fabric.Quit{}, fabric.MessageReceived{Topic: "0", Text: "late"})
	h.Tick()
	if !h.Quit() {
		t.Fatal("expected quit event to end the program")
	}
	expectNoCommand(t, fab)
	if len(fab.Events()) != 1 {
		t.Fatal("events after quit must be left unread")
	}
}

func TestLeavingRoomDiscardsTranscript(t *testing.T) {
	h, fab := newTestHarness(t)
	room := openRoom(t, h, fab)
	deliver(t, fab, fabric.MessageReceived{Topic: "0", Text: "x"})
	h.Tick()
	if len(room.Messages) != 1 {
		t.Fatal("expected one message")
	}
	h.Type("q")
	reopened := openRoom(t, h, fab)
	if reopened == room || len(reopened.Messages) != 0 {
		t.Fatal("expected a fresh room after leaving")
	}
	if _, ok := h.Model().Page().(*page.ChatRoom); !ok {
		t.Fatal("expected chat room")
	}
}
