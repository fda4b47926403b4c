// Package timer runs the reminder collaborator: it owns the timer event
// channel, persists pending timers, and fires each one as an outbound action.
package timer

import (
	"context"
	"log/slog"
	"time"

	"relaybot/internal/bus"
	"relaybot/internal/domain"
	"relaybot/internal/store"
)

// Event asks for a message to be sent to a channel after a delay.
type Event struct {
	Target  domain.ChannelRef
	Message string
	In      time.Duration
}

// Manager consumes timer events, persists them, and fires them. Timers that
// survived a restart are rescheduled on Run; ones that expired while the bot
// was down are purged.
type Manager struct {
	events chan Event
	bus    *bus.Bus
	store  *store.Store
	logger *slog.Logger
}

func NewManager(b *bus.Bus, s *store.Store, logger *slog.Logger) *Manager {
	return &Manager{
		events: make(chan Event, 10),
		bus:    b,
		store:  s,
		logger: logger,
	}
}

// Schedule queues a timer event. Safe to call from any goroutine; blocks
// briefly when the manager is saturated.
func (m *Manager) Schedule(e Event) {
	m.events <- e
}

func (m *Manager) Run(ctx context.Context) {
	if n, err := m.store.PurgeExpiredTimers(ctx, time.Now()); err != nil {
		m.logger.Error("purging expired timers failed", "error", err)
	} else if n > 0 {
		m.logger.Info("removed expired timers", "count", n)
	}

	pending, err := m.store.PendingTimers(ctx)
	if err != nil {
		m.logger.Error("loading persisted timers failed", "error", err)
	} else if len(pending) > 0 {
		m.logger.Info("rescheduling persisted timers", "count", len(pending))
		for _, t := range pending {
			m.start(ctx, t)
		}
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("timer manager stopping")
			return
		case e := <-m.events:
			rec := store.Timer{
				FireAt:  time.Now().Add(e.In),
				Message: e.Message,
				Target:  e.Target,
			}
			id, err := m.store.AddTimer(ctx, rec)
			if err != nil {
				// Keep the timer for this process lifetime anyway.
				m.logger.Error("persisting timer failed", "error", err)
			}
			rec.ID = id
			m.start(ctx, rec)
		}
	}
}

// start fires one timer in its own goroutine. The persisted row is removed
// only after the action has been submitted.
func (m *Manager) start(ctx context.Context, t store.Timer) {
	go func() {
		d := time.Until(t.FireAt)
		if d < 0 {
			d = 0
		}
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		m.bus.SubmitAction(domain.Action{
			Target: t.Target,
			Kind:   domain.ActionSay,
			Text:   t.Message,
		})
		if t.ID != 0 {
			if err := m.store.RemoveTimer(ctx, t.ID); err != nil && ctx.Err() == nil {
				m.logger.Error("removing fired timer failed", "id", t.ID, "error", err)
			}
		}
	}()
}
