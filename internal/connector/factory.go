package connector

import (
	"fmt"
	"log/slog"

	"relaybot/internal/config"
	"relaybot/internal/domain"
)

// New builds the connector for one network config.
func New(cfg config.NetworkConfig, logger *slog.Logger) (domain.Connector, error) {
	switch cfg.Protocol {
	case "irc":
		return NewIRC(cfg, logger), nil
	case "telegram":
		return NewTelegram(cfg, logger), nil
	case "discord":
		return NewDiscord(cfg, logger), nil
	case "slack":
		return NewSlack(cfg, logger), nil
	default:
		return nil, fmt.Errorf("network %s: unknown protocol %q", cfg.Name, cfg.Protocol)
	}
}
