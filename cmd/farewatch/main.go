package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farewatch/internal/config"
	"farewatch/internal/database"
	"farewatch/internal/engine"
	"farewatch/internal/notify"
	"farewatch/internal/provider"
	"farewatch/internal/token"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := database.NewPostgresRepository(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("cannot connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("cannot migrate database: %v", err)
	}

	var notifier notify.Notifier
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		notifier = notify.NewTelegram(logger, cfg.Telegram)
	} else {
		logger.Warn("telegram not configured, notifications go to the log")
		notifier = notify.LogOnly{Logger: logger}
	}

	clients := make(map[string]provider.Client)
	suppliers := make(map[string]token.Supplier)
	for name, providerCfg := range cfg.Providers {
		client, err := provider.NewClient(name, logger, providerCfg)
		if err != nil {
			log.Fatalf("cannot create provider %s: %v", name, err)
		}
		clients[name] = client
		if providerCfg.AuthURL != "" {
			suppliers[name] = token.NewSniffer(logger, providerCfg.AuthURL, hostOf(providerCfg.BaseURL))
		}
	}

	driver := engine.NewDriver(logger, repo, notifier, clients, suppliers, &cfg)

	driver.RunCycle(ctx)
	if cfg.PollInterval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			driver.RunCycle(ctx)
		}
	}
}

// hostOf strips the scheme from a base URL so the token sniffer can match
// API requests by host.
func hostOf(baseURL string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if len(baseURL) > len(prefix) && baseURL[:len(prefix)] == prefix {
			return baseURL[len(prefix):]
		}
	}
	return baseURL
}
