package dispatch

import (
	"context"
	"strings"
	"time"

	"relaybot/internal/domain"
)

const adminQueryTimeout = 5 * time.Second

// handleCommand parses a prefixed command and runs the matching handler.
// Unknown commands are ignored.
func (d *Dispatcher) handleCommand(ctx context.Context, source domain.ChannelRef, text string, sender *domain.UserID) {
	command, params := splitCommand(text[len(d.prefix):])

	switch command {
	case "echo":
		d.cmdEcho(source, params, sender)
	case "roll":
		d.cmdRoll(source, params)
	case "timer":
		d.cmdTimer(source, params, sender)
	case "pizza":
		d.cmdPizza(source, sender, "small pizza", 12*time.Minute)
	case "bigone":
		d.cmdPizza(source, sender, "big pizza", 15*time.Minute)
	case "weatherset":
		d.cmdWeatherSet(ctx, source, params, sender)
	case "rss":
		if d.isAdmin(ctx, source.Network, sender) {
			d.cmdRSS(ctx, source, params)
		}
	}
}

// splitCommand separates the command word from its parameters.
func splitCommand(s string) (string, string) {
	i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' })
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// isAdmin resolves the sender's mask and asks the registry. A sender with no
// resolvable identity is never an admin.
func (d *Dispatcher) isAdmin(ctx context.Context, network string, sender *domain.UserID) bool {
	if sender == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, adminQueryTimeout)
	defer cancel()
	return d.bus.IsAdmin(ctx, network, sender.Mask())
}

func (d *Dispatcher) cmdEcho(source domain.ChannelRef, params string, sender *domain.UserID) {
	var reply string
	if sender != nil {
		reply = sender.Mask() + ": " + params
	} else {
		reply = "Echo: " + params
	}
	d.say(source, reply)
}

func (d *Dispatcher) cmdWeatherSet(ctx context.Context, source domain.ChannelRef, location string, sender *domain.UserID) {
	if sender == nil {
		return
	}

	reply := "Weather location set"
	if err := d.store.SetLocation(ctx, source.Network, sender.Nick, location); err != nil {
		d.logger.Error("storing weather location failed", "error", err)
		reply = "Database error"
	}
	d.say(source, reply)
}
