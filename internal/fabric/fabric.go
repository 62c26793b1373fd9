package fabric

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabrieldemian/p2p-chat/internal/logging/events"
)

const (
	DefaultCapacity = 200
	MinCapacity     = 20
	MaxCapacity     = 200
)

// ErrClosed is returned when a send is abandoned because the sender's
// context ended, which only happens while shutting down.
var ErrClosed = errors.New("fabric: channel closed")

// Fabric holds the two channels. The receiving ends belong to exactly one
// actor each; the sending ends may be shared by several producers.
type Fabric struct {
	commands chan Command
	events   chan Event
}

// New creates both channels with the given capacity, clamped to
// [MinCapacity, MaxCapacity]. Zero selects DefaultCapacity.
func New(capacity int) *Fabric {
	capacity = ClampCapacity(capacity)
	return &Fabric{
		commands: make(chan Command, capacity),
		events:   make(chan Event, capacity),
	}
}

// ClampCapacity normalises a requested channel capacity.
func ClampCapacity(capacity int) int {
	switch {
	case capacity == 0:
		return DefaultCapacity
	case capacity < MinCapacity:
		return MinCapacity
	case capacity > MaxCapacity:
		return MaxCapacity
	}
	return capacity
}

// Capacity reports the slot count of each channel.
func (f *Fabric) Capacity() int {
	return cap(f.commands)
}

// Commands is the receiving end used by the network daemon.
func (f *Fabric) Commands() <-chan Command {
	return f.commands
}

// Events is the receiving end used by the UI.
func (f *Fabric) Events() <-chan Event {
	return f.events
}

// SendCommand enqueues cmd, waiting while the channel is full.
func (f *Fabric) SendCommand(ctx context.Context, cmd Command) error {
	select {
	case f.commands <- cmd:
		events.Fabric.Command(cmd.Kind(), len(f.commands))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send %s command: %w: %w", cmd.Kind(), ErrClosed, ctx.Err())
	}
}

// SendEvent enqueues evt, waiting while the channel is full.
func (f *Fabric) SendEvent(ctx context.Context, evt Event) error {
	select {
	case f.events <- evt:
		events.Fabric.Event(evt.Kind(), len(f.events))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send %s event: %w: %w", evt.Kind(), ErrClosed, ctx.Err())
	}
}

// TryEvent receives one event without blocking.
func (f *Fabric) TryEvent() (Event, bool) {
	select {
	case evt := <-f.events:
		return evt, true
	default:
		return nil, false
	}
}

// DrainEvents hands every event already queued when the call starts to
// apply, without waiting for new ones. It returns the number applied.
func (f *Fabric) DrainEvents(apply func(Event) bool) int {
	backlog := len(f.events)
	n := 0
	for ; n < backlog; n++ {
		evt, ok := f.TryEvent()
		if !ok {
			break
		}
		if !apply(evt) {
			n++
			break
		}
	}
	events.Fabric.Drain(n)
	return n
}
