// Package ui contains the Bubble Tea program that renders the chat.
//
// Message flow:
//   - Bubble Tea invokes Model.Update with incoming messages, which are routed
//     through a typed handler registry so each tea.Msg is handled by a focused
//     function.
//   - Key presses are dispatched on the current page: navigation.go handles
//     the topic list, input.go handles the chat room in both modes.
//   - A tickMsg fires on every tick interval. backend.go drains whatever the
//     network daemon has queued on the fabric so far, without waiting for
//     more, and applies each event to the current page.
//
// State ownership:
//   - Exactly one page.Page is current. Transitions replace it wholesale, so
//     a half-updated page is never rendered.
//   - Commands for the network daemon are sent from Update in commands.go.
//     A full channel blocks Update until the daemon catches up.
package ui
