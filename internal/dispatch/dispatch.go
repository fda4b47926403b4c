// Package dispatch consumes the merged inbound stream and turns channel text
// into command handler invocations. Every handler runs in its own goroutine
// so a slow external call never blocks other messages or other networks.
package dispatch

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"relaybot/internal/bus"
	"relaybot/internal/domain"
	"relaybot/internal/store"
	"relaybot/internal/timer"
)

var urlPattern = regexp.MustCompile(`(https?://[^ ]+)`)

// Dispatcher is the single consumer of the merged inbound stream.
type Dispatcher struct {
	bus             *bus.Bus
	store           *store.Store
	timers          *timer.Manager
	logger          *slog.Logger
	prefix          string
	defaultLocation string
}

type Config struct {
	Bus             *bus.Bus
	Store           *store.Store
	Timers          *timer.Manager
	Logger          *slog.Logger
	Prefix          string
	DefaultLocation string
}

func New(cfg Config) *Dispatcher {
	if cfg.Prefix == "" {
		cfg.Prefix = "."
	}
	return &Dispatcher{
		bus:             cfg.Bus,
		store:           cfg.Store,
		timers:          cfg.Timers,
		logger:          cfg.Logger,
		prefix:          cfg.Prefix,
		defaultLocation: cfg.DefaultLocation,
	}
}

// Run consumes inbound events until ctx is cancelled or the bus closes.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started", "prefix", d.prefix)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case e, ok := <-d.bus.Events():
			if !ok {
				d.logger.Info("inbound stream closed, dispatcher stopping")
				return
			}
			d.handle(ctx, e)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, e domain.Event) {
	if e.Message.Kind != domain.KindText {
		return
	}

	source := domain.ChannelRef{Network: e.Network, Channel: e.Message.Channel}
	text := e.Message.Text
	sender := e.Message.Sender

	if urlPattern.MatchString(text) {
		d.spawn(func() { d.handleURLTitles(ctx, source, text) })
	}

	if strings.HasPrefix(text, d.prefix) && len(text) > len(d.prefix) {
		d.spawn(func() { d.handleCommand(ctx, source, text, sender) })
	}
}

// spawn runs a handler fire-and-forget. A panicking handler is contained
// here; it must never take down the routing core.
func (d *Dispatcher) spawn(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("command handler panic", "panic", r)
			}
		}()
		fn()
	}()
}

// say submits a plain text reply to the source channel.
func (d *Dispatcher) say(target domain.ChannelRef, text string) {
	d.bus.SubmitAction(domain.Action{
		Target: target,
		Kind:   domain.ActionSay,
		Text:   text,
	})
}
