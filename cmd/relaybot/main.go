package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"relaybot/internal/bus"
	"relaybot/internal/config"
	"relaybot/internal/connector"
	"relaybot/internal/dispatch"
	"relaybot/internal/registry"
	"relaybot/internal/rss"
	"relaybot/internal/store"
	"relaybot/internal/timer"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "relaybot",
		Short:   "relaybot: multi-network chat bot",
		Long:    "relaybot connects to IRC, Telegram, and Discord networks and answers commands on all of them.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yml (default: ~/.relaybot/config.yml)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := resolveConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false, "err", err)
				return nil
			}
			logger.Info("config", "path", cfgPath, "loaded", true)
			if err := config.Validate(cfg); err != nil {
				logger.Warn("config invalid", "err", err)
				return nil
			}
			for _, n := range cfg.Networks {
				logger.Info("network", "name", n.Name, "protocol", n.Protocol, "channels", len(n.Channels), "admins", len(n.Admins))
			}
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to all configured networks and serve commands",
		RunE:  run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.General.LogLevel),
	}))

	if err := os.MkdirAll(config.DefaultConfigDir(), 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(cfg.Dispatch.BusBuffer, logger)

	db, err := store.New(cfg.Store.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	reg := registry.New(messageBus, logger)
	for _, n := range cfg.Networks {
		conn, err := connector.New(n, logger)
		if err != nil {
			return fmt.Errorf("network %s: %w", n.Name, err)
		}
		reg.Add(conn, n.Admins)
		logger.Info("network configured", "name", n.Name, "protocol", n.Protocol)
	}

	timers := timer.NewManager(messageBus, db, logger)
	go timers.Run(ctx)

	if cfg.RSS.Enabled {
		interval := time.Duration(cfg.RSS.RefreshMinutes) * time.Minute
		go rss.NewManager(messageBus, db, logger, interval).Run(ctx)
	}

	dispatcher := dispatch.New(dispatch.Config{
		Bus:             messageBus,
		Store:           db,
		Timers:          timers,
		Logger:          logger,
		Prefix:          cfg.Dispatch.CommandPrefix,
		DefaultLocation: cfg.General.DefaultWeatherLocation,
	})
	go dispatcher.Run(ctx)

	go reg.Run(ctx)

	logger.Info("relaybot started", "networks", len(cfg.Networks))

	<-ctx.Done()
	logger.Info("shutting down")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
