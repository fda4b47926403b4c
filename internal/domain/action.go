package domain

// ChannelRef identifies one destination channel on one network.
// It is a small value type; copy freely.
type ChannelRef struct {
	Network string
	Channel string
}

// ActionKind selects how an outbound action hits the wire.
type ActionKind int

const (
	// ActionSay sends plain text to the target channel.
	ActionSay ActionKind = iota
	// ActionAct sends an emote (CTCP ACTION on IRC, styled text elsewhere).
	ActionAct
)

// Action is one outbound message addressed to a single network channel.
// Consumed exactly once by the registry, which forwards it to the matching
// connection actor or drops it when the network is unknown.
type Action struct {
	Target ChannelRef
	Kind   ActionKind
	Text   string
}
