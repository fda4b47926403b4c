package connector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"relaybot/internal/config"
	"relaybot/internal/domain"
)

// Slack connects via Socket Mode, which needs both a bot token and an
// app-level token. Slack channel IDs stand in for channel names; admin
// masks take the form <user id>!<user id>@slack.
type Slack struct {
	cfg    config.NetworkConfig
	logger *slog.Logger
}

func NewSlack(cfg config.NetworkConfig, logger *slog.Logger) *Slack {
	return &Slack{
		cfg:    cfg,
		logger: logger.With("network", cfg.Name),
	}
}

func (c *Slack) Network() string { return c.cfg.Name }

func (c *Slack) Run(ctx context.Context, events chan<- domain.Event, actions <-chan domain.Action) error {
	api := slack.New(c.cfg.Token, slack.OptionAppLevelToken(c.cfg.AppToken))

	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	c.logger.Info("slack bot connected", "user", auth.User, "user_id", auth.UserID)

	socket := socketmode.New(api)
	runErr := make(chan error, 1)
	go func() {
		runErr <- socket.RunContext(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-runErr:
			return fmt.Errorf("slack socket: %w", err)

		case evt := <-socket.Events:
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			payload, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			socket.Ack(*evt.Request)

			msg, ok := payload.InnerEvent.Data.(*slackevents.MessageEvent)
			if !ok || msg.User == auth.UserID || msg.BotID != "" {
				continue
			}
			e := domain.Event{
				Network: c.cfg.Name,
				Message: domain.Message{
					Kind:    domain.KindText,
					Channel: msg.Channel,
					Text:    msg.Text,
					Sender: &domain.UserID{
						Nick: msg.User,
						User: msg.User,
						Host: "slack",
					},
				},
			}
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
			_, _, err := api.PostMessageContext(ctx, a.Target.Channel,
				slack.MsgOptionText(text, false))
			if err != nil {
				return fmt.Errorf("slack send: %w", err)
			}
		}
	}
}
