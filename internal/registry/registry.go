// Package registry owns the set of per-network connection actors and the
// single routing loop between them and the rest of the bot.
package registry

import (
	"context"
	"log/slog"

	"relaybot/internal/bus"
	"relaybot/internal/domain"
)

const inboxSize = 10

// Registry supervises one actor goroutine per registered connector. It is
// the only place that holds per-network outbound handles, and the only
// reader of the bus action and admin-query channels.
type Registry struct {
	bus        *bus.Bus
	logger     *slog.Logger
	connectors []domain.Connector
	inboxes    map[string]chan domain.Action
	admins     map[string][]string
	merged     chan domain.Event
}

func New(b *bus.Bus, logger *slog.Logger) *Registry {
	return &Registry{
		bus:     b,
		logger:  logger,
		inboxes: make(map[string]chan domain.Action),
		admins:  make(map[string][]string),
		merged:  make(chan domain.Event, 100),
	}
}

// Add registers a connector and the admin masks for its network.
// Must be called before Run; the actor set never changes afterwards.
func (r *Registry) Add(conn domain.Connector, admins []string) {
	r.connectors = append(r.connectors, conn)
	r.inboxes[conn.Network()] = make(chan domain.Action, inboxSize)
	r.admins[conn.Network()] = admins
}

// Run spawns the connection actors and services the three event sources
// until ctx is cancelled: merged inbound events (forwarded downstream),
// outbound actions (routed by network name), and admin queries.
func (r *Registry) Run(ctx context.Context) {
	for _, conn := range r.connectors {
		go r.runActor(ctx, conn)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("registry stopping")
			return

		case e := <-r.merged:
			r.bus.PublishEvent(e)

		case a, ok := <-r.bus.Actions():
			if !ok {
				r.logger.Info("action channel closed, registry stopping")
				return
			}
			r.route(a)

		case q, ok := <-r.bus.Queries():
			if !ok {
				r.logger.Info("query channel closed, registry stopping")
				return
			}
			// Reply is buffered; an abandoned query makes this a no-op.
			q.Reply <- r.isAdmin(q.Network, q.Mask)
		}
	}
}

// route forwards an action to the inbox of its target network. An unknown
// network or a saturated (possibly dead) actor inbox drops the action.
func (r *Registry) route(a domain.Action) {
	inbox, ok := r.inboxes[a.Target.Network]
	if !ok {
		r.logger.Warn("dropping action for unknown network",
			"network", a.Target.Network, "channel", a.Target.Channel)
		return
	}
	select {
	case inbox <- a:
	default:
		r.logger.Warn("dropping action: actor inbox full",
			"network", a.Target.Network, "channel", a.Target.Channel)
	}
}

func (r *Registry) isAdmin(network, mask string) bool {
	for _, a := range r.admins[network] {
		if a == mask {
			return true
		}
	}
	return false
}

// runActor runs one connector to completion. A connection failure is fatal
// to this network only: the registry keeps routing for the others and
// actions addressed here pile up in the inbox until they drop.
func (r *Registry) runActor(ctx context.Context, conn domain.Connector) {
	network := conn.Network()
	r.logger.Info("starting network connection", "network", network)

	err := conn.Run(ctx, r.merged, r.inboxes[network])
	if err != nil && ctx.Err() == nil {
		r.logger.Error("network connection terminated", "network", network, "error", err)
	}
}
