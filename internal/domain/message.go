package domain

// MessageKind classifies a protocol event as seen by the routing core.
// Only channel-directed text is acted on; everything else passes through
// as KindOther and is ignored downstream.
type MessageKind int

const (
	KindOther MessageKind = iota
	KindText
)

// UserID is the sender identity attached to a protocol message, when the
// network resolves one. Server-sourced events carry no identity.
type UserID struct {
	Nick string
	User string
	Host string
}

// Mask returns the identity in nick!user@host form.
func (u UserID) Mask() string {
	return u.Nick + "!" + u.User + "@" + u.Host
}

// Message is one normalized protocol event from a network connection.
type Message struct {
	Kind    MessageKind
	Channel string
	Text    string
	Sender  *UserID // nil when the event has no resolvable sender
}

// Event is an inbound message tagged with the network it arrived on.
// Produced once by a connection actor, consumed once by the dispatcher.
type Event struct {
	Network string
	Message Message
}
