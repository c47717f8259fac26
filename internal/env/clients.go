package environment

import (
	"context"
	"log/slog"
	"time"

	"reseller-panel/internal/config"
	"reseller-panel/internal/infra/backend"
	"reseller-panel/internal/infra/sqlite3"
	"reseller-panel/internal/infra/telegram"
)

type Clients struct {
	SQLiteDB    *sqlite3.DB
	Backend     *backend.Client
	TelegramBot *telegram.Client
}

func newClients(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Clients, error) {
	sqliteDB, err := provideSQLiteDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	backendClient, err := provideBackend(cfg, logger)
	if err != nil {
		_ = sqliteDB.Close()
		return nil, err
	}

	telegramBot, err := provideTelegramBot(cfg, logger)
	if err != nil {
		_ = sqliteDB.Close()
		return nil, err
	}

	return &Clients{
		SQLiteDB:    sqliteDB,
		Backend:     backendClient,
		TelegramBot: telegramBot,
	}, nil
}

func provideSQLiteDB(ctx context.Context, cfg config.Config) (*sqlite3.DB, error) {
	maxLifetimeStr := cfg.DB.MaxLifetime
	if maxLifetimeStr == "" {
		maxLifetimeStr = "5m"
	}
	maxLifetime, err := time.ParseDuration(maxLifetimeStr)
	if err != nil {
		return nil, err
	}

	opts := []sqlite3.Option{
		sqlite3.WithPath(cfg.DB.Path),
		sqlite3.WithMaxOpenConns(cfg.DB.MaxOpenConns),
		sqlite3.WithMaxIdleConns(cfg.DB.MaxIdleConns),
		sqlite3.WithConnMaxLifetime(maxLifetime),
	}

	return sqlite3.New(ctx, opts...)
}

func provideBackend(cfg config.Config, logger *slog.Logger) (*backend.Client, error) {
	bc := cfg.Backend
	return backend.NewClient(bc.BaseURL(),
		backend.WithTimeout(bc.Timeout),
		backend.WithRetries(bc.MaxRetries, bc.RetryInterval),
		backend.WithRateLimit(bc.RateLimit.RPS, bc.RateLimit.Burst),
		backend.WithCredentials(bc.Username, bc.Password),
		backend.WithLogger(logger.With("component", "backend")),
	)
}

// Без токена уведомления в телеграм отключены.
func provideTelegramBot(cfg config.Config, logger *slog.Logger) (*telegram.Client, error) {
	if cfg.Telegram.BotToken == "" {
		return nil, nil
	}

	return telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.Timeout, logger.With("component", "telegram"))
}
