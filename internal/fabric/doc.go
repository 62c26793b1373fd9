// Package fabric defines the only communication path between the network
// daemon and the UI: two bounded, ordered channels carrying value messages.
//
// Commands flow UI→Network (Publish, Subscribe, Dial, Quit); events flow
// Network→UI (MessageReceived, Quit). Sends block while a channel is full so
// a runaway producer is slowed down instead of growing memory. Order is FIFO
// inside each channel and unspecified across the two.
package fabric
