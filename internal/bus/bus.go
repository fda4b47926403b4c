package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"relaybot/internal/domain"
)

const publishTimeout = 10 * time.Second

// Bus owns the shared channels of the routing core: the outbound action
// queue, the merged inbound event stream, and the admin query rendezvous.
// All three are bounded; a full channel blocks the producer instead of
// growing memory without limit.
type Bus struct {
	actions chan domain.Action
	events  chan domain.Event
	queries chan domain.AdminQuery
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
}

// New creates a Bus with the given per-channel buffer size.
func New(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		actions: make(chan domain.Action, bufferSize),
		events:  make(chan domain.Event, bufferSize),
		queries: make(chan domain.AdminQuery, bufferSize),
		logger:  logger,
	}
}

// SubmitAction queues an outbound action for routing. Safe to call from any
// goroutine. Blocks up to 10 seconds when the queue is full, then drops the
// action with an error log.
func (b *Bus) SubmitAction(a domain.Action) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("action submitted to closed bus",
			"network", a.Target.Network, "channel", a.Target.Channel)
		return
	}

	select {
	case b.actions <- a:
	default:
		b.logger.Warn("action queue full, waiting",
			"network", a.Target.Network, "channel", a.Target.Channel)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.actions <- a:
		case <-timer.C:
			b.logger.Error("action dropped: queue full for 10s",
				"network", a.Target.Network, "channel", a.Target.Channel)
		}
	}
}

// Actions is read by the registry only.
func (b *Bus) Actions() <-chan domain.Action {
	return b.actions
}

// PublishEvent feeds one merged inbound event toward the dispatcher.
// Same backpressure behavior as SubmitAction.
func (b *Bus) PublishEvent(e domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("event published to closed bus", "network", e.Network)
		return
	}

	select {
	case b.events <- e:
	default:
		b.logger.Warn("event queue full, waiting", "network", e.Network)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.events <- e:
		case <-timer.C:
			b.logger.Error("event dropped: queue full for 10s", "network", e.Network)
		}
	}
}

// Events is read by the dispatcher only.
func (b *Bus) Events() <-chan domain.Event {
	return b.events
}

// SubmitQuery enqueues an admin query for the registry to answer. Returns
// false when the bus is closed or ctx expires before the query is accepted.
func (b *Bus) SubmitQuery(ctx context.Context, q domain.AdminQuery) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false
	}
	select {
	case b.queries <- q:
		return true
	case <-ctx.Done():
		return false
	}
}

// IsAdmin answers whether mask is a configured admin on network, by way of
// a request/response round trip to the registry. Fails closed: a cancelled
// context, a closed bus, or a dropped query all read as "not admin".
func (b *Bus) IsAdmin(ctx context.Context, network, mask string) bool {
	if mask == "" {
		return false
	}

	q := domain.NewAdminQuery(network, mask)
	if !b.SubmitQuery(ctx, q) {
		return false
	}

	select {
	case ok := <-q.Reply:
		return ok
	case <-ctx.Done():
		return false
	}
}

// Queries is read by the registry only.
func (b *Bus) Queries() <-chan domain.AdminQuery {
	return b.queries
}

// Close marks the bus closed. Later submissions become logged no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.actions)
		close(b.events)
		close(b.queries)
	}
}
