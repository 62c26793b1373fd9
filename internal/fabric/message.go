package fabric

// Topic identifies one chat room in the publish/subscribe mesh.
type Topic string

func (t Topic) String() string { return string(t) }

// Command is a request from the UI to the network daemon.
type Command interface {
	command()
	Kind() string
}

// Event is a notification from the network daemon to the UI.
type Event interface {
	event()
	Kind() string
}

// Publish asks the daemon to deliver Text to every subscriber of Topic.
type Publish struct {
	Topic Topic
	Text  string
}

// Subscribe asks the daemon to join Topic.
type Subscribe struct {
	Topic Topic
}

// Dial asks the daemon to connect to an explicit multiaddr.
type Dial struct {
	Address string
}

// Quit stops the receiving actor. It flows in both directions.
type Quit struct{}

// MessageReceived carries one inbound gossip message, already formatted for
// display with the short sender prefix.
type MessageReceived struct {
	Topic Topic
	Text  string
}

func (Publish) command()   {}
func (Subscribe) command() {}
func (Dial) command()      {}
func (Quit) command()      {}

func (MessageReceived) event() {}
func (Quit) event()            {}

func (Publish) Kind() string         { return "publish" }
func (Subscribe) Kind() string       { return "subscribe" }
func (Dial) Kind() string            { return "dial" }
func (Quit) Kind() string            { return "quit" }
func (MessageReceived) Kind() string { return "message" }
