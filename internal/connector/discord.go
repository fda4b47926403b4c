package connector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"relaybot/internal/config"
	"relaybot/internal/domain"
)

// Discord connects one bot token to the Discord gateway. Discord channel IDs
// stand in for channel names; admin masks take the form
// username!<user id>@discord.
type Discord struct {
	cfg    config.NetworkConfig
	logger *slog.Logger
}

func NewDiscord(cfg config.NetworkConfig, logger *slog.Logger) *Discord {
	return &Discord{
		cfg:    cfg,
		logger: logger.With("network", cfg.Name),
	}
}

func (c *Discord) Network() string { return c.cfg.Name }

func (c *Discord) Run(ctx context.Context, events chan<- domain.Event, actions <-chan domain.Action) error {
	session, err := discordgo.New("Bot " + c.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	// The gateway library invokes handlers on its own goroutines; funnel
	// received messages through inbox so the actor loop below stays the
	// single producer into the merge point.
	inbox := make(chan domain.Event, 100)
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.ID == s.State.User.ID {
			return
		}
		e := domain.Event{
			Network: c.cfg.Name,
			Message: domain.Message{
				Kind:    domain.KindText,
				Channel: m.ChannelID,
				Text:    m.Content,
				Sender: &domain.UserID{
					Nick: m.Author.Username,
					User: m.Author.ID,
					Host: "discord",
				},
			},
		}
		select {
		case inbox <- e:
		case <-ctx.Done():
		}
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	defer session.Close()
	c.logger.Info("discord bot connected", "user", session.State.User.Username)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case e := <-inbox:
			select {
			case events <- e:
			case <-ctx.Done():
				return ctx.Err()
			}

		case a := <-actions:
			text := a.Text
			if a.Kind == domain.ActionAct {
				text = "_" + text + "_"
			}
			if _, err := session.ChannelMessageSend(a.Target.Channel, text); err != nil {
				return fmt.Errorf("discord send: %w", err)
			}
		}
	}
}
