// Package connector holds the per-network connection actors. Each connector
// bridges one chat network's native protocol to the normalized event and
// action types the routing core works with.
package connector

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"gopkg.in/irc.v4"

	"relaybot/internal/config"
	"relaybot/internal/domain"
)

const (
	ircDialTimeout = 30 * time.Second
	defaultNick    = "relaybot"
)

// IRC connects to one IRC network.
type IRC struct {
	cfg    config.NetworkConfig
	logger *slog.Logger
}

func NewIRC(cfg config.NetworkConfig, logger *slog.Logger) *IRC {
	return &IRC{
		cfg:    cfg,
		logger: logger.With("network", cfg.Name),
	}
}

func (c *IRC) Network() string { return c.cfg.Name }

// Run dials the server and services the connection until ctx is cancelled or
// the connection fails. Wire messages and outbound actions are raced with no
// fixed priority; inbound order is preserved end to end.
func (c *IRC) Run(ctx context.Context, events chan<- domain.Event, actions <-chan domain.Action) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.Addr(), err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	nick := c.cfg.Nick
	if nick == "" {
		nick = defaultNick
	}

	// The client's read loop feeds raw; the actor loop below is the only
	// consumer, so per-network wire order survives into the merge point.
	raw := make(chan *irc.Message, 100)
	client := irc.NewClient(conn, irc.ClientConfig{
		Nick: nick,
		User: nick,
		Name: nick,
		Handler: irc.HandlerFunc(func(_ *irc.Client, m *irc.Message) {
			select {
			case raw <- m.Copy():
			case <-ctx.Done():
			}
		}),
	})

	runErr := make(chan error, 1)
	go func() { runErr <- client.RunContext(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-runErr:
			return fmt.Errorf("connection closed: %w", err)

		case m := <-raw:
			c.handleMessage(ctx, client, m, events)

		case a := <-actions:
			if err := c.send(client, a); err != nil {
				return fmt.Errorf("send to %s: %w", a.Target.Channel, err)
			}
		}
	}
}

func (c *IRC) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: ircDialTimeout}
	if c.cfg.TLS {
		return (&tls.Dialer{NetDialer: dialer}).DialContext(ctx, "tcp", c.cfg.Addr())
	}
	return dialer.DialContext(ctx, "tcp", c.cfg.Addr())
}

func (c *IRC) handleMessage(ctx context.Context, client *irc.Client, m *irc.Message, events chan<- domain.Event) {
	switch m.Command {
	case "001":
		// Registered; join the configured channels once.
		for _, ch := range c.cfg.Channels {
			c.logger.Info("joining channel", "channel", ch)
			if err := client.WriteMessage(&irc.Message{Command: "JOIN", Params: []string{ch}}); err != nil {
				c.logger.Error("join failed", "channel", ch, "error", err)
			}
		}

	case "PRIVMSG":
		if len(m.Params) < 2 {
			c.logger.Debug("dropping malformed PRIVMSG", "params", len(m.Params))
			return
		}
		msg := domain.Message{
			Kind:    domain.KindText,
			Channel: m.Params[0],
			Text:    m.Trailing(),
			Sender:  senderFromPrefix(m.Prefix),
		}
		select {
		case events <- domain.Event{Network: c.cfg.Name, Message: msg}:
		case <-ctx.Done():
		}

	default:
		// Server noise (PING is answered inside the client library).
		select {
		case events <- domain.Event{Network: c.cfg.Name, Message: domain.Message{Kind: domain.KindOther}}:
		case <-ctx.Done():
		}
	}
}

func (c *IRC) send(client *irc.Client, a domain.Action) error {
	text := a.Text
	if a.Kind == domain.ActionAct {
		text = "\x01ACTION " + text + "\x01"
	}
	return client.WriteMessage(&irc.Message{
		Command: "PRIVMSG",
		Params:  []string{a.Target.Channel, text},
	})
}

// senderFromPrefix resolves the nick!user@host identity of a message, or nil
// for server-sourced messages. A partial prefix resolves to nil as well, so
// admin checks against it fail closed.
func senderFromPrefix(p *irc.Prefix) *domain.UserID {
	if p == nil || p.Name == "" || p.User == "" || p.Host == "" {
		return nil
	}
	return &domain.UserID{Nick: p.Name, User: p.User, Host: p.Host}
}
