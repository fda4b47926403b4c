package domain

import "context"

// Connector is one live connection to one chat network. Each connector is
// owned by exactly one actor goroutine: Run connects, joins the configured
// channels, and then races inbound protocol events against outbound actions
// until ctx is cancelled or the connection fails.
//
// Inbound events are written to events in wire arrival order. Outbound
// actions arrive on actions already routed to this network; a send failure
// is fatal to the connector and Run returns the error.
type Connector interface {
	Network() string
	Run(ctx context.Context, events chan<- Event, actions <-chan Action) error
}
