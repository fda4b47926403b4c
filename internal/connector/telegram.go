package connector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"relaybot/internal/config"
	"relaybot/internal/domain"
)

// Telegram connects one bot token to the Telegram Bot API via long polling.
// Chat IDs stand in for channel names; admin masks take the form
// username!<user id>@telegram.
type Telegram struct {
	cfg    config.NetworkConfig
	logger *slog.Logger
}

func NewTelegram(cfg config.NetworkConfig, logger *slog.Logger) *Telegram {
	return &Telegram{
		cfg:    cfg,
		logger: logger.With("network", cfg.Name),
	}
}

func (c *Telegram) Network() string { return c.cfg.Name }

func (c *Telegram) Run(ctx context.Context, events chan<- domain.Event, actions <-chan domain.Action) error {
	bot, err := tgbotapi.NewBotAPI(c.cfg.Token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	c.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)
	defer bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("update stream closed")
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			msg := domain.Message{
				Kind:    domain.KindText,
				Channel: strconv.FormatInt(update.Message.Chat.ID, 10),
				Text:    update.Message.Text,
				Sender:  telegramSender(update.Message.From),
			}
			select {
			case events <- domain.Event{Network: c.cfg.Name, Message: msg}:
			case <-ctx.Done():
				return ctx.Err()
			}

		case a := <-actions:
			if err := c.send(bot, a); err != nil {
				return err
			}
		}
	}
}

func (c *Telegram) send(bot *tgbotapi.BotAPI, a domain.Action) error {
	chatID, err := strconv.ParseInt(a.Target.Channel, 10, 64)
	if err != nil {
		// Misaddressed action, not a connection failure.
		c.logger.Warn("dropping action with invalid chat ID", "channel", a.Target.Channel)
		return nil
	}

	text := a.Text
	if a.Kind == domain.ActionAct {
		text = "* " + text
	}

	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func telegramSender(u *tgbotapi.User) *domain.UserID {
	if u == nil {
		return nil
	}
	nick := u.UserName
	if nick == "" {
		nick = u.FirstName
	}
	if nick == "" {
		return nil
	}
	return &domain.UserID{
		Nick: nick,
		User: strconv.FormatInt(u.ID, 10),
		Host: "telegram",
	}
}
